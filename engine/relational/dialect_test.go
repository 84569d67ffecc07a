package relational

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	cases := []struct {
		quoteChar byte
		name      string
		want      string
	}{
		{'"', "users", `"users"`},
		{'"', `a"b`, `"a""b"`},
		{'`', "users", "`users`"},
		{'`', "a`b", "`a``b`"},
	}
	for _, c := range cases {
		got := quoteIdentifier(c.quoteChar, c.name)
		if got != c.want {
			t.Errorf("quoteIdentifier(%q, %q) = %q, want %q", c.quoteChar, c.name, got, c.want)
		}
	}
}

func TestPlaceholderStyles(t *testing.T) {
	if got := (mysqlDialect{}).Placeholder(3); got != "?" {
		t.Errorf("mysqlDialect.Placeholder(3) = %q, want \"?\"", got)
	}
	if got := (postgresDialect{}).Placeholder(3); got != "$3" {
		t.Errorf("postgresDialect.Placeholder(3) = %q, want \"$3\"", got)
	}
}

func TestQuoteCharPerDialect(t *testing.T) {
	if got := (mysqlDialect{}).QuoteChar(); got != '`' {
		t.Errorf("mysqlDialect.QuoteChar() = %q, want '`'", got)
	}
	if got := (postgresDialect{}).QuoteChar(); got != '"' {
		t.Errorf("postgresDialect.QuoteChar() = %q, want '\"'", got)
	}
}
