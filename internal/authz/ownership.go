package authz

// IsOwner resolves the owning identity of a resource and compares it to the
// actor. Equality is identity-based: an unidentified actor owns nothing.
// User accounts are owned by themselves; everything else by its OwnerID
// (author for posts and reposts, user for interactions).
func IsOwner(res Resource, actor Actor) bool {
	if !actor.Identified() {
		return false
	}
	if res.Kind == KindUsers {
		return res.ID != 0 && res.ID == actor.ID
	}
	return res.OwnerID != 0 && res.OwnerID == actor.ID
}
