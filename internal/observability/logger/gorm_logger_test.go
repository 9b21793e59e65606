package logger

import (
	"testing"
)

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT 1", want: "SELECT"},
		{sql: "  insert into ledger_entries (id) values (1)", want: "INSERT"},
		{sql: "WITH active AS (SELECT 1) SELECT * FROM active", want: "SELECT"},
		{sql: "SET LOCAL statement_timeout = 500", want: "SET"},
		{sql: "", want: "UNKNOWN"},
		{sql: "VACUUM", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}
