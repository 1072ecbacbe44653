package taxii

import "strconv"

// StatusType is the outcome vocabulary of status messages.
type StatusType string

const (
	StatusSuccess                    StatusType = "SUCCESS"
	StatusPending                    StatusType = "PENDING"
	StatusFailure                    StatusType = "FAILURE"
	StatusNotFound                   StatusType = "NOT_FOUND"
	StatusBadMessage                 StatusType = "BAD_MESSAGE"
	StatusDenied                     StatusType = "DENIED"
	StatusUnauthorized               StatusType = "UNAUTHORIZED"
	StatusUnsupportedContentBinding  StatusType = "UNSUPPORTED_CONTENT"
	StatusDestinationCollectionError StatusType = "DESTINATION_COLLECTION_ERROR"
)

// DetailKey names a structured status detail.
type DetailKey string

const (
	DetailEstimatedWait         DetailKey = "ESTIMATED_WAIT"
	DetailResultID              DetailKey = "RESULT_ID"
	DetailWillPush              DetailKey = "WILL_PUSH"
	DetailSupportedContent      DetailKey = "SUPPORTED_CONTENT"
	DetailAcceptableDestination DetailKey = "ACCEPTABLE_DESTINATION"
	DetailItem                  DetailKey = "ITEM"
)

// Details carries structured status details. Every value is a list so that
// single values and name lists share one shape.
type Details map[DetailKey][]string

// Get returns the first value stored under key, or "".
func (d Details) Get(key DetailKey) string {
	if vs := d[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Set stores a single value under key.
func (d Details) Set(key DetailKey, value string) Details {
	d[key] = []string{value}
	return d
}

// SetInt stores a decimal value under key.
func (d Details) SetInt(key DetailKey, value int) Details {
	return d.Set(key, strconv.Itoa(value))
}

// SetBool stores "true" or "false" under key.
func (d Details) SetBool(key DetailKey, value bool) Details {
	return d.Set(key, strconv.FormatBool(value))
}
