package tree

import "testing"

func TestFormatQualifiedID(t *testing.T) {
	cases := []struct {
		name      string
		contentID string
		number    int
		qualifier string
		want      string
	}{
		{name: "plain", contentID: "GR-Lot", number: 2, want: "gr_lot_0002"},
		{name: "qualified", contentID: "BT-21-Lot", number: 1, qualifier: "gr_lot_0002", want: "gr_lot_0002_bt_21_lot_0001"},
		{name: "no suffix", contentID: "BT-21-Lot", number: -1, want: "bt_21_lot"},
		{name: "parentheses", contentID: "BT-702(a)-notice", number: 1, want: "bt_702_a__notice_0001"},
		{name: "leading digit", contentID: "01-field", number: 3, want: "_01_field_0003"},
		{name: "trimmed", contentID: "  ND-Root ", number: 1, want: "nd_root_0001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatQualifiedID(tc.contentID, tc.number, tc.qualifier); got != tc.want {
				t.Fatalf("FormatQualifiedID = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatSchemedID(t *testing.T) {
	if got := FormatSchemedID("ORG", 7); got != "ORG-0007" {
		t.Fatalf("FormatSchemedID = %q", got)
	}
	if got := FormatSchemedID("LOT", 12345); got != "LOT-12345" {
		t.Fatalf("FormatSchemedID = %q", got)
	}
}
