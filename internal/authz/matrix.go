package authz

import "fmt"

// PermissionMatrix is the static role × resource-kind × action table. It is
// read-only after initialization and safe for unsynchronized concurrent reads.
type PermissionMatrix map[Role]map[ResourceKind]map[Action]Mode

// DefaultMatrix returns the permission table for the publishing service.
//
// Design notes: superadmin maps to ModeAny for reads and deletes but ModeOwn
// for creates (a superadmin cannot claim authorship of someone else's
// content), and content creation stays conditional for every identified role
// so that draft posts reject interactions even from their author. Admin
// mutations resolve to ModeModerate rather than ModeAny: moderation is a
// constrained privilege, bounded by the moderation predicates.
func DefaultMatrix() PermissionMatrix {
	return PermissionMatrix{
		RoleUnknown: {
			KindPosts:        {ActionRead: ModePublishedOnly},
			KindReposts:      {ActionRead: ModePublishedOnly},
			KindInteractions: {ActionRead: ModePublishedOnly},
			KindLikes:        {ActionRead: ModePublishedOnly},
			KindComments:     {ActionRead: ModePublishedOnly},
		},
		RoleUser: {
			KindPosts: {
				ActionCreate: ModeOwn,
				ActionRead:   ModeConditional,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeOwn,
			},
			KindReposts: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeConditional,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeOwn,
			},
			KindInteractions: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeConditional,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeOwn,
			},
			KindLikes: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeConditional,
				ActionDelete: ModeOwn,
			},
			KindComments: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeConditional,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeModerate,
			},
			KindUsers: {
				ActionRead:       ModeOwn,
				ActionUpdate:     ModeOwn,
				ActionDelete:     ModeOwn,
				ActionDeactivate: ModeOwn,
			},
		},
		RoleAdmin: {
			KindPosts: {
				ActionCreate: ModeOwn,
				ActionRead:   ModeAny,
				ActionUpdate: ModeModerate,
				ActionDelete: ModeModerate,
			},
			KindReposts: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionUpdate: ModeModerate,
				ActionDelete: ModeModerate,
			},
			KindInteractions: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeOwn,
			},
			KindLikes: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionDelete: ModeModerate,
			},
			KindComments: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeModerate,
			},
			KindUsers: {
				ActionRead:       ModeAny,
				ActionUpdate:     ModeModerate,
				ActionDelete:     ModeModerate,
				ActionDeactivate: ModeModerate,
			},
		},
		RoleSuperadmin: {
			KindPosts: {
				ActionCreate: ModeOwn,
				ActionRead:   ModeAny,
				ActionUpdate: ModeAny,
				ActionDelete: ModeAny,
			},
			KindReposts: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionUpdate: ModeAny,
				ActionDelete: ModeAny,
			},
			KindInteractions: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeAny,
			},
			KindLikes: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionDelete: ModeAny,
			},
			KindComments: {
				ActionCreate: ModeConditional,
				ActionRead:   ModeAny,
				ActionUpdate: ModeOwn,
				ActionDelete: ModeAny,
			},
			KindUsers: {
				ActionRead:       ModeAny,
				ActionUpdate:     ModeAny,
				ActionDelete:     ModeAny,
				ActionDeactivate: ModeAny,
			},
		},
	}
}

// Lookup resolves the mode for a (role, kind, action) triple. The function is
// total: missing entries resolve to ModeNone.
func (m PermissionMatrix) Lookup(role Role, kind ResourceKind, action Action) Mode {
	kinds, ok := m[role]
	if !ok {
		return ModeNone
	}
	actions, ok := kinds[kind]
	if !ok {
		return ModeNone
	}
	mode, ok := actions[action]
	if !ok {
		return ModeNone
	}
	return mode
}

// Validate checks the matrix against the closed enumerations and the
// registered predicate sets. Malformed entries are configuration errors
// caught at startup, never at request time.
func (m PermissionMatrix) Validate(conditional *ConditionalSet, moderation *ModerationSet) error {
	for role, kinds := range m {
		if !role.Valid() {
			return fmt.Errorf("authz: matrix references unknown role %q", role)
		}
		for kind, actions := range kinds {
			if !kind.Valid() {
				return fmt.Errorf("authz: matrix references unknown resource kind %q", kind)
			}
			for action, mode := range actions {
				if !action.Valid() {
					return fmt.Errorf("authz: matrix references unknown action %q", action)
				}
				if !mode.Valid() {
					return fmt.Errorf("authz: matrix entry %s/%s/%s has invalid mode %q", role, kind, action, mode)
				}
				if role == RoleUnknown && mode != ModeAny && mode != ModeNone && mode != ModePublishedOnly {
					return fmt.Errorf("authz: unknown actors cannot be granted mode %q (%s/%s)", mode, kind, action)
				}
				switch mode {
				case ModeConditional:
					if conditional == nil || !conditional.Registered(kind, action) {
						return fmt.Errorf("authz: no conditional predicate registered for %s/%s", kind, action)
					}
					if action == ActionRead && !conditional.HasFilter(kind, action) {
						return fmt.Errorf("authz: no collection filter registered for conditional read %s/%s", kind, action)
					}
				case ModeModerate:
					if moderation == nil || !moderation.Registered(kind, action, role) {
						return fmt.Errorf("authz: no moderation predicate registered for %s/%s/%s", role, kind, action)
					}
				}
			}
		}
	}
	return nil
}
