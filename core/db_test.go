package core

import "testing"

func TestDBOrderingString(t *testing.T) {
	tests := []struct {
		name string
		ord  DBOrdering
		want string
	}{
		{name: "ascending", ord: DBOrdering{Field: "created_at", Ascending: true}, want: "created_at ASC"},
		{name: "descending is the default", ord: DBOrdering{Field: "completed_at"}, want: "completed_at DESC"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.ord.String(); got != test.want {
				t.Errorf("expected %q; got %q", test.want, got)
			}
		})
	}
}
