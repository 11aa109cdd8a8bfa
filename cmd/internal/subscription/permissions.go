package subscription

// Access rules, written as pure functions of the row and its member
// allow-list so they can be checked anywhere a row and its members are in
// hand, not only behind the store.

// IsOwner reports whether userID owns the subscription.
func IsOwner(userID string, s Subscription) bool {
	return userID != "" && s.OwnerID == userID
}

// IsMember reports whether userID appears in the allow-list.
func IsMember(userID string, members []Member) bool {
	if userID == "" {
		return false
	}
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// CanView: the owner and allow-listed members see a subscription. Everyone
// else gets not-found, never forbidden, so existence is not leaked.
func CanView(userID string, s Subscription, members []Member) bool {
	return IsOwner(userID, s) || IsMember(userID, members)
}

// CanEdit: mutation is owner-only. Members share the account, they do not
// administer the pool.
func CanEdit(userID string, s Subscription) bool {
	return IsOwner(userID, s)
}

// CanViewAccount: shared credentials follow subscription visibility.
func CanViewAccount(userID string, s Subscription, members []Member) bool {
	return CanView(userID, s, members)
}
