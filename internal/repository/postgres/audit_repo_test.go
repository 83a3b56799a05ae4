package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/riskwatch/internal/audit"
)

func TestBuildAuditInsert(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []audit.Entry{
		{ID: "a", AdminID: "admin", TargetUserID: "u1", Action: "lock_account", Before: map[string]any{"access_level": "full"}, Timestamp: ts},
		{ID: "b", AdminID: "admin", TargetUserID: "u2", Action: "unblock", Timestamp: ts},
	}

	query, args, err := buildAuditInsert(entries)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO admin_audit_trail"))
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10),($11,")
	assert.Contains(t, query, "$20)")
	assert.NotContains(t, query, "$21")
	require.Len(t, args, 2*auditColumns)

	assert.Equal(t, "lock_account", args[4])
	assert.JSONEq(t, `{"access_level":"full"}`, string(args[6].([]byte)))
	assert.Equal(t, "null", string(args[auditColumns+6].([]byte)))
	assert.Equal(t, ts, args[2*auditColumns-1])
}
