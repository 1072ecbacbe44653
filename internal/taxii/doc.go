// Package taxii provides the domain model shared by the TAXII 1.x engines.
//
// This package contains types and small pure helpers only. Every other
// internal package imports taxii; taxii imports nothing internal.
//
// Key constraints:
//   - Collection and service names are NFC normalized (see NormalizeName)
//   - Protocol version differences are expressed through Version, never
//     through parallel type hierarchies
//   - Service configuration travels with each request as ServiceConfig
//   - All JSON tags use snake_case
package taxii
