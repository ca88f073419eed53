package models

import "testing"

func TestPermissionValidate(t *testing.T) {
	edit := Right{Name: RightEditFeatures}
	access := Right{Name: RightAccessApplication}

	cases := []struct {
		name    string
		perm    Permission
		wantErr bool
	}{
		{"no restriction", Permission{Right: access}, false},
		{"restricted edit", Permission{Right: edit, Restriction: []string{"cable"}}, false},
		{"empty restriction list", Permission{Right: edit, Restriction: []string{}}, true},
		{"blank type name", Permission{Right: edit, Restriction: []string{""}}, true},
		{"restriction on access right", Permission{Right: access, Restriction: []string{"cable"}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.perm.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
