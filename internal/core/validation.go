package core

// DefaultKeyColumn is the join column both uploads must contain.
const DefaultKeyColumn = "ID"

// ValidateKeyColumn checks that both tables carry the key column (exact,
// case-sensitive match). It returns nil on success, or a MissingKeyColumn
// error naming every table that lacks it. Names label the tables in the
// error and may be empty.
func ValidateKeyColumn(keys, data *Table, key string, names ...string) *JoinError {
	name := func(i int) string {
		if i < len(names) {
			return names[i]
		}
		return ""
	}

	var missing []FileRef
	if keys == nil || !keys.HasColumn(key) {
		missing = append(missing, FileRef{Role: RoleKeys, Name: name(0)})
	}
	if data == nil || !data.HasColumn(key) {
		missing = append(missing, FileRef{Role: RoleData, Name: name(1)})
	}
	if len(missing) == 0 {
		return nil
	}
	return &JoinError{Kind: KindMissingKeyColumn, Key: key, Files: missing}
}
