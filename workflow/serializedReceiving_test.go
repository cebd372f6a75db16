package workflow_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/pos_backend/utils"
	"bitbucket.org/mmdatafocus/pos_backend/workflow"
)

func TestValidateChildSerials(t *testing.T) {
	cases := []struct {
		name    string
		specs   []workflow.ChildSpec
		wantErr bool
		wantDup string
	}{
		{
			name:  "distinct imeis",
			specs: []workflow.ChildSpec{{Imei: "356938035643809"}, {Imei: "356938035643810"}},
		},
		{
			name:  "serial number fallback",
			specs: []workflow.ChildSpec{{SerialNumber: "SN-001"}, {SerialNumber: "SN-002"}},
		},
		{
			name:    "empty identifier",
			specs:   []workflow.ChildSpec{{Imei: "  "}},
			wantErr: true,
		},
		{
			name:    "duplicate imei under one parent",
			specs:   []workflow.ChildSpec{{Imei: "356938035643809"}, {Imei: "356938035643809"}},
			wantErr: true,
			wantDup: "356938035643809",
		},
		{
			name:    "imei colliding with serial number",
			specs:   []workflow.ChildSpec{{Imei: "SN-009"}, {SerialNumber: "SN-009"}},
			wantErr: true,
			wantDup: "SN-009",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := workflow.ValidateChildSerials(tc.specs)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantDup != "" {
				var dup *utils.DuplicateSerialError
				if !errors.As(err, &dup) {
					t.Fatalf("expected DuplicateSerialError, got %T", err)
				}
				if dup.Serial != tc.wantDup {
					t.Fatalf("duplicate serial = %q; want %q", dup.Serial, tc.wantDup)
				}
			}
		})
	}
}

func TestSafeDelete_RejectsBadStrategy(t *testing.T) {
	err := workflow.SafeDelete(nil, nil, 1, "obliterate", 0)
	if err == nil {
		t.Fatal("expected invalid strategy rejection")
	}
}
