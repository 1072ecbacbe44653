package taxii

// Permission is an account's access level on one collection.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionModify Permission = "modify"
)

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionModify
}

// Account is a caller identity. Engines only consult it; they never change it.
type Account struct {
	Username    string                `json:"username" yaml:"username"`
	IsAdmin     bool                  `json:"is_admin" yaml:"is_admin"`
	Permissions map[string]Permission `json:"permissions,omitempty" yaml:"permissions,omitempty"` // collection name -> permission
}

// CanRead reports whether the account may poll the named collection.
func (a *Account) CanRead(collection string) bool {
	if a.IsAdmin {
		return true
	}
	p, ok := a.Permissions[collection]
	return ok && (p == PermissionRead || p == PermissionModify)
}

// CanModify reports whether the account may push into the named collection.
func (a *Account) CanModify(collection string) bool {
	if a.IsAdmin {
		return true
	}
	return a.Permissions[collection] == PermissionModify
}
