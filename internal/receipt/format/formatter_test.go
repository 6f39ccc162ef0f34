package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReceiptNumber(t *testing.T) {
	issuedAt := time.Date(2026, time.March, 9, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		seq      int64
		want     string
		wantErr  bool
	}{
		{name: "default template", template: DefaultReceiptNumberTemplate, seq: 42, want: "RCP-2026-000042"},
		{name: "padded colon spelling", template: "R-{SEQ:4}", seq: 7, want: "R-0007"},
		{name: "padded bare spelling", template: "R-{SEQ4}", seq: 7, want: "R-0007"},
		{name: "date tokens", template: "{YY}{MM}{DD}-{SEQ}", seq: 3, want: "260309-3"},
		{name: "sequence wider than pad", template: "{SEQ:2}", seq: 12345, want: "12345"},
		{name: "empty template", template: "", seq: 1, wantErr: true},
		{name: "zero sequence", template: "{SEQ}", seq: 0, wantErr: true},
		{name: "unresolved token", template: "RCP-{BOGUS}", seq: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatReceiptNumber(tt.template, issuedAt, tt.seq)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
