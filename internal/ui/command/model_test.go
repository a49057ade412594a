package command

import "testing"

func TestCommandMsg_NameArg(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantArg  string
	}{
		{in: "refresh", wantName: "refresh"},
		{in: "View-As Padres", wantName: "view-as", wantArg: "Padres"},
		{in: "  view-as   none  ", wantName: "view-as", wantArg: "none"},
		{in: "", wantName: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := CommandMsg(tt.in)
			if got := c.Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
			if got := c.Arg(); got != tt.wantArg {
				t.Errorf("Arg() = %q, want %q", got, tt.wantArg)
			}
		})
	}
}
