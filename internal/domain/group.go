package domain

// GroupKey addresses a set of live connections, e.g. "perm:read:dashboard".
type GroupKey string

const (
	groupRole       = "role:"
	groupPermission = "perm:"
	groupDepartment = "dept:"
	groupShift      = "shift:"
	groupUser       = "user:"
)

func RoleGroup(r Role) GroupKey             { return GroupKey(groupRole + string(r)) }
func PermissionGroup(p Permission) GroupKey { return GroupKey(groupPermission + string(p)) }
func DepartmentGroup(dept string) GroupKey  { return GroupKey(groupDepartment + dept) }
func ShiftGroup(shift string) GroupKey      { return GroupKey(groupShift + shift) }
func UserGroup(actorID string) GroupKey     { return GroupKey(groupUser + actorID) }
func (k GroupKey) String() string           { return string(k) }

// GroupsFor derives every group an actor's connections belong to: its role,
// one group per permission, department and shift when set, and its own user
// group. The result has no duplicates.
func GroupsFor(a Actor) []GroupKey {
	keys := make([]GroupKey, 0, len(a.Permissions)+4)
	seen := make(map[GroupKey]struct{}, cap(keys))
	add := func(k GroupKey) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	if a.Role != "" {
		add(RoleGroup(a.Role))
	}
	for _, p := range a.Permissions {
		if p != "" {
			add(PermissionGroup(p))
		}
	}
	if a.Department != "" {
		add(DepartmentGroup(a.Department))
	}
	if a.Shift != "" {
		add(ShiftGroup(a.Shift))
	}
	add(UserGroup(a.ID))
	return keys
}
