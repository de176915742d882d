package model

// Identity is the caller as resolved from request headers.
// UserID is set by the upstream auth gateway; GuestID is the anonymous shopper token.
type Identity struct {
	UserID  string
	GuestID string
}

// IsUser reports whether the caller is authenticated.
func (i Identity) IsUser() bool {
	return i.UserID != ""
}

// CartOwner picks the cart the caller operates on: the user's when signed in, otherwise the guest's.
func (i Identity) CartOwner() (Owner, error) {
	switch {
	case i.UserID != "":
		return UserOwner(i.UserID), nil
	case i.GuestID != "":
		return GuestOwner(i.GuestID), nil
	default:
		return Owner{}, ErrUnauthenticated
	}
}
