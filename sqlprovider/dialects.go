package sqlprovider

// Dialect identifiers reported by remote executors.
const (
	PostgreSQL = "PostgreSQL"
	MySQL      = "MySql"
	SQLite     = "SQLite"
	Sybase     = "Sybase"
)

// NewPostgreSQLProvider builds a PostgreSQL provider.
func NewPostgreSQLProvider(flags Flags) Provider {
	return &basicProvider{
		d: dialect{
			name:          PostgreSQL,
			quoteOpen:     `"`,
			quoteClose:    `"`,
			paramPrefix:   ":",
			limit:         limitOffset,
			trueLiteral:   "True",
			falseLiteral:  "False",
			identityQuery: "SELECT lastval()",
		},
		flags: flags,
	}
}

// NewMySQLProvider builds a MySQL provider.
func NewMySQLProvider(flags Flags) Provider {
	return &basicProvider{
		d: dialect{
			name:          MySQL,
			quoteOpen:     "`",
			quoteClose:    "`",
			paramPrefix:   "@",
			limit:         limitComma,
			trueLiteral:   "1",
			falseLiteral:  "0",
			identityQuery: "SELECT LAST_INSERT_ID()",
			noLimit:       "18446744073709551615",
		},
		flags: flags,
	}
}

// NewSQLiteProvider builds a SQLite provider.
func NewSQLiteProvider(flags Flags) Provider {
	return &basicProvider{
		d: dialect{
			name:          SQLite,
			quoteOpen:     "[",
			quoteClose:    "]",
			paramPrefix:   "@",
			limit:         limitOffset,
			trueLiteral:   "1",
			falseLiteral:  "0",
			identityQuery: "SELECT last_insert_rowid()",
			noLimit:       "-1",
		},
		flags: flags,
	}
}

// NewSybaseProvider builds a Sybase ASE provider.
func NewSybaseProvider(flags Flags) Provider {
	return &basicProvider{
		d: dialect{
			name:          Sybase,
			quoteOpen:     "[",
			quoteClose:    "]",
			paramPrefix:   "@",
			limit:         limitTop,
			trueLiteral:   "1",
			falseLiteral:  "0",
			identityQuery: "SELECT @@IDENTITY",
		},
		flags: flags,
	}
}

// SybaseFlags returns the capability flags a Sybase executor reports: TOP
// cannot be a parameter and rows cannot be skipped.
func SybaseFlags() Flags {
	f := DefaultFlags()
	f.AcceptsTakeAsParameter = false
	f.IsSkipSupported = false
	return f
}

// MySQLFlags returns the capability flags a MySQL executor reports.
func MySQLFlags() Flags {
	f := DefaultFlags()
	f.IsSubQueryColumnSupported = false
	return f
}

func registerBuiltins(r *Registry) {
	r.mustRegister(PostgreSQL, NewPostgreSQLProvider)
	r.mustRegister(MySQL, NewMySQLProvider)
	r.mustRegister(SQLite, NewSQLiteProvider)
	r.mustRegister(Sybase, NewSybaseProvider)
}
