package dburl

import (
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"
)

// GenScheme returns a generator that rewrites the URL to use scheme, defaulting the host to
// localhost.
func GenScheme(scheme string) Generator {
	return func(u *URL) (string, string, error) {
		z := &url.URL{
			Scheme:   scheme,
			Opaque:   u.Opaque,
			User:     u.User,
			Host:     u.Host,
			Path:     u.Path,
			RawPath:  u.RawPath,
			RawQuery: u.RawQuery,
			Fragment: u.Fragment,
		}
		if z.Host == "" {
			z.Host = "localhost"
		}
		return z.String(), "", nil
	}
}

// GenSchemeTruncate generates a DSN by stripping the scheme (and "://") from the URL.
func GenSchemeTruncate(u *URL) (string, string, error) {
	s := u.URL.String()
	if i := strings.Index(s, "://"); i != -1 {
		return s[i+3:], "", nil
	}
	return s, "", nil
}

// GenFromURL returns a generator that fills in missing URL components from the defaults in
// urlstr, which must be a valid URL.
func GenFromURL(urlstr string) Generator {
	z, err := url.Parse(urlstr)
	if err != nil {
		panic(err)
	}
	return func(u *URL) (string, string, error) {
		opaque := z.Opaque
		if u.Opaque != "" {
			opaque = u.Opaque
		}
		user := z.User
		if u.User != nil {
			user = u.User
		}
		host, port := z.Hostname(), z.Port()
		if h := u.Hostname(); h != "" {
			host = h
		}
		if p := u.Port(); p != "" {
			port = p
		}
		if port != "" {
			host += ":" + port
		}
		pstr := z.Path
		if u.Path != "" {
			pstr = u.Path
		}
		rawPath := z.RawPath
		if u.RawPath != "" {
			rawPath = u.RawPath
		}
		q := z.Query()
		for k, v := range u.Query() {
			q.Set(k, strings.Join(v, " "))
		}
		fragment := z.Fragment
		if u.Fragment != "" {
			fragment = u.Fragment
		}
		y := &url.URL{
			Scheme:   z.Scheme,
			Opaque:   opaque,
			User:     user,
			Host:     host,
			Path:     pstr,
			RawPath:  rawPath,
			RawQuery: q.Encode(),
			Fragment: fragment,
		}
		return y.String(), "", nil
	}
}

// GenOpaque generates a DSN from the opaque part of the URL (a file path).
func GenOpaque(u *URL) (string, string, error) {
	if u.Opaque == "" {
		return "", "", ErrMissingPath
	}
	return u.Opaque + genQueryOptions(u.Query()), "", nil
}

// GenAdodb generates an ADODB connection string.
func GenAdodb(u *URL) (string, string, error) {
	host, port := u.Hostname(), u.Port()
	dsname, dbname := strings.TrimPrefix(u.Path, "/"), ""
	if dsname == "" {
		dsname = "."
	}
	// the data source is a path on disk unless it does not exist
	if mode(dsname) == 0 {
		if i := strings.IndexAny(dsname, `\/`); i != -1 {
			dbname = dsname[i+1:]
			dsname = dsname[:i]
		}
	}
	q := u.Query()
	q.Set("Provider", host)
	q.Set("Port", port)
	q.Set("Data Source", dsname)
	q.Set("Database", dbname)
	if u.User != nil {
		q.Set("User ID", u.User.Username())
		pass, _ := u.User.Password()
		q.Set("Password", pass)
	}
	if u.hostPortDB == nil {
		n := dsname
		if dbname != "" {
			n += "/" + dbname
		}
		u.hostPortDB = []string{host, port, n}
	}
	return genOptionsOdbc(q, true), "", nil
}

// GenCassandra generates a cassandra (cql) DSN.
func GenCassandra(u *URL) (string, string, error) {
	host, port, dbname := "localhost", "9042", strings.TrimPrefix(u.Path, "/")
	if h := u.Hostname(); h != "" {
		host = h
	}
	if p := u.Port(); p != "" {
		port = p
	}
	q := u.Query()
	if u.User != nil {
		q.Set("username", u.User.Username())
		if pass, _ := u.User.Password(); pass != "" {
			q.Set("password", pass)
		}
	}
	if dbname != "" {
		q.Set("keyspace", dbname)
	}
	return host + ":" + port + genQueryOptions(q), "", nil
}

// GenCosmos generates a Cosmos DB DSN. The user is the account key.
func GenCosmos(u *URL) (string, string, error) {
	host, port, dbname := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	if port != "" {
		port = ":" + port
	}
	if u.User == nil {
		return "", "", ErrMissingUser
	}
	q := u.Query()
	q.Set("AccountEndpoint", "https://"+host+port)
	q.Set("AccountKey", u.User.Username())
	if dbname != "" {
		q.Set("Db", dbname)
	}
	return genOptionsOdbc(q, true), "", nil
}

// GenDatabend generates a databend DSN.
func GenDatabend(u *URL) (string, string, error) {
	if u.Hostname() == "" {
		return "", "", ErrMissingHost
	}
	return u.URL.String(), "", nil
}

// GenExasol generates an exasol DSN.
func GenExasol(u *URL) (string, string, error) {
	host, port, dbname := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "8563"
	}
	q := u.Query()
	if dbname != "" {
		q.Set("schema", dbname)
	}
	if u.User != nil {
		q.Set("user", u.User.Username())
		pass, _ := u.User.Password()
		q.Set("password", pass)
	}
	return fmt.Sprintf("exa:%s:%s%s", host, port, genOptions(q, ";", "=", ";", ",", true)), "", nil
}

// GenFirebird generates a firebirdsql DSN.
func GenFirebird(u *URL) (string, string, error) {
	z := &url.URL{
		User:     u.User,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	return strings.TrimPrefix(z.String(), "//"), "", nil
}

// GenIgnite generates an Apache Ignite DSN.
func GenIgnite(u *URL) (string, string, error) {
	host, port, dbname := "localhost", "10800", strings.TrimPrefix(u.Path, "/")
	if h := u.Hostname(); h != "" {
		host = h
	}
	if p := u.Port(); p != "" {
		port = p
	}
	q := u.Query()
	if u.User != nil {
		q.Set("username", u.User.Username())
		if pass, _ := u.User.Password(); pass != "" {
			q.Set("password", pass)
		}
	}
	if dbname != "" {
		dbname = "/" + dbname
	}
	return "tcp://" + host + ":" + port + dbname + genQueryOptions(q), "", nil
}

// GenMysql generates a go-sql-driver/mysql DSN: user:pass@tcp(host:port)/dbname?opts
func GenMysql(u *URL) (string, string, error) {
	host, port, dbname := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	var s string
	if u.User != nil {
		if n := u.User.Username(); n != "" {
			if p, ok := u.User.Password(); ok {
				n += ":" + p
			}
			s += n + "@"
		}
	}
	if u.Transport == "unix" {
		if host == "" {
			dbname = "/" + dbname
		}
		host, dbname = resolveSocket(path.Join(host, dbname))
		port = ""
	} else {
		if host == "" {
			host = "localhost"
		}
		if port == "" {
			port = "3306"
		}
	}
	if port != "" {
		port = ":" + port
	}
	if u.hostPortDB == nil {
		u.hostPortDB = []string{host, strings.TrimPrefix(port, ":"), dbname}
	}
	s += u.Transport + "(" + host + port + ")" + "/" + dbname
	return s + genQueryOptions(u.Query()), "", nil
}

// GenOdbc generates an ODBC DSN. The transport names the ODBC driver (odbc+postgres://...).
func GenOdbc(u *URL) (string, string, error) {
	q := u.Query()
	host, port, dbname := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	if u.hostPortDB == nil {
		u.hostPortDB = []string{host, port, dbname}
	}
	q.Set("Driver", "{"+strings.ReplaceAll(u.Transport, "+", " ")+"}")
	q.Set("Server", host)
	if port == "" {
		proto := strings.ToLower(u.Transport)
		switch {
		case strings.Contains(proto, "mysql"):
			q.Set("Port", "3306")
		case strings.Contains(proto, "postgres"):
			q.Set("Port", "5432")
		case strings.Contains(proto, "db2") || strings.Contains(proto, "ibm"):
			q.Set("ServiceName", "50000")
		default:
			q.Set("Port", "1433")
		}
	} else {
		q.Set("Port", port)
	}
	q.Set("Database", dbname)
	if u.User != nil {
		q.Set("UID", u.User.Username())
		pass, _ := u.User.Password()
		q.Set("PWD", pass)
	}
	return genOptionsOdbc(q, true), "", nil
}

// GenOleOdbc generates an OLE ODBC connection string wrapping the ODBC DSN.
func GenOleOdbc(u *URL) (string, string, error) {
	props, _, err := GenOdbc(u)
	if err != nil {
		return "", "", err
	}
	return `Provider=MSDASQL.1;Extended Properties="` + props + `"`, "", nil
}

// GenPostgres generates a libpq style keyword/value DSN (host=... port=... dbname=...).
func GenPostgres(u *URL) (string, string, error) {
	host, port, dbname := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	if host == "." {
		return "", "", ErrRelativePathNotSupported
	}
	if u.Transport == "unix" {
		if host == "" {
			dbname = "/" + dbname
		}
		host, port, dbname = resolveDir(path.Join(host, dbname))
	}
	q := u.Query()
	q.Set("host", host)
	q.Set("port", port)
	q.Set("dbname", dbname)
	if u.User != nil {
		q.Set("user", u.User.Username())
		pass, _ := u.User.Password()
		q.Set("password", pass)
	}
	if u.hostPortDB == nil {
		u.hostPortDB = []string{host, port, dbname}
	}
	for k, v := range q {
		for i := range v {
			v[i] = quotePostgresValue(v[i])
		}
		q[k] = v
	}
	return genOptions(q, "", "=", " ", ",", true), "", nil
}

// GenPresto generates a presto/trino DSN. Schemes ending in "s" use https.
func GenPresto(u *URL) (string, string, error) {
	z := &url.URL{
		Scheme:   "http",
		Opaque:   u.Opaque,
		User:     u.User,
		Host:     u.Host,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	if strings.HasSuffix(strings.ToLower(u.OriginalScheme), "s") {
		z.Scheme = "https"
	}
	if z.User == nil {
		z.User = url.User("user")
	}
	if z.Host == "" {
		z.Host = "localhost"
	}
	if u.Port() == "" {
		if z.Scheme == "http" {
			z.Host += ":8080"
		} else {
			z.Host += ":8443"
		}
	}
	q := z.Query()
	catalog, schema := strings.TrimPrefix(u.Path, "/"), ""
	if catalog == "" {
		catalog = "default"
	} else if i := strings.Index(catalog, "/"); i != -1 {
		catalog, schema = catalog[:i], catalog[i+1:]
	}
	q.Set("catalog", catalog)
	if schema != "" {
		q.Set("schema", schema)
	}
	z.RawQuery = q.Encode()
	return z.String(), "", nil
}

// GenSnowflake generates a snowflake DSN: user:pass@account/dbname?opts
func GenSnowflake(u *URL) (string, string, error) {
	host, port, dbname := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	if host == "" {
		return "", "", ErrMissingHost
	}
	if port != "" {
		port = ":" + port
	}
	if u.User == nil {
		return "", "", ErrMissingUser
	}
	user := u.User.Username()
	if pass, _ := u.User.Password(); pass != "" {
		user += ":" + pass
	}
	return user + "@" + host + port + "/" + dbname + genQueryOptions(u.Query()), "", nil
}

// GenSpanner generates a spanner DSN from spanner://project/instance/dbname
func GenSpanner(u *URL) (string, string, error) {
	project, dbname := u.Hostname(), strings.TrimPrefix(u.Path, "/")
	if project == "" {
		return "", "", ErrMissingHost
	}
	i := strings.Index(dbname, "/")
	if i == -1 {
		return "", "", ErrMissingPath
	}
	instance, dbname := dbname[:i], dbname[i+1:]
	if instance == "" || dbname == "" {
		return "", "", ErrMissingPath
	}
	return fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, dbname), "", nil
}

// GenSqlserver generates a sqlserver DSN. The last path component becomes the database query
// parameter, and azuresql (by scheme or fedauth parameter) selects the azuresql Go driver.
func GenSqlserver(u *URL) (string, string, error) {
	z := &url.URL{
		Scheme:   "sqlserver",
		Opaque:   u.Opaque,
		User:     u.User,
		Host:     u.Host,
		Path:     u.Path,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	if z.Host == "" {
		z.Host = "localhost"
	}
	driver := "sqlserver"
	if strings.Contains(strings.ToLower(u.Scheme), "azuresql") || u.Query().Get("fedauth") != "" {
		driver = "azuresql"
	}
	v := strings.Split(strings.TrimPrefix(z.Path, "/"), "/")
	if n, q := len(v), z.Query(); !q.Has("database") && n != 0 && len(v[0]) != 0 {
		q.Set("database", v[n-1])
		z.Path, z.RawQuery = "/"+strings.Join(v[:n-1], "/"), q.Encode()
	}
	return z.String(), driver, nil
}

// GenTableStore generates an Alibaba TableStore DSN; ots+http selects plain http.
func GenTableStore(u *URL) (string, string, error) {
	var transport string
	splits := strings.Split(u.OriginalScheme, "+")
	switch {
	case len(splits) == 1 || splits[1] == "https":
		transport = "https"
	case splits[1] == "http":
		transport = "http"
	default:
		return "", "", ErrInvalidTransportProtocol
	}
	z := &url.URL{
		Scheme:   transport,
		Opaque:   u.Opaque,
		User:     u.User,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	return z.String(), "", nil
}

// GenVoltdb generates a voltdb DSN: host:port
func GenVoltdb(u *URL) (string, string, error) {
	host, port := "localhost", "21212"
	if h := u.Hostname(); h != "" {
		host = h
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return host + ":" + port, "", nil
}

func genQueryOptions(q url.Values) string {
	if s := q.Encode(); s != "" {
		return "?" + s
	}
	return ""
}

func genOptionsOdbc(q url.Values, skipWhenEmpty bool, ignore ...string) string {
	return genOptions(q, "", "=", ";", ",", skipWhenEmpty, ignore...)
}

// genOptions joins q as k<assign>v pairs separated by sep, keys sorted, prefixed by joiner.
func genOptions(q url.Values, joiner, assign, sep, valSep string, skipWhenEmpty bool, ignore ...string) string {
	if len(q) == 0 {
		return ""
	}
	ig := make(map[string]bool, len(ignore))
	for _, v := range ignore {
		ig[strings.ToLower(v)] = true
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var opts []string
	for _, k := range keys {
		if ig[strings.ToLower(k)] {
			continue
		}
		val := strings.Join(q[k], valSep)
		if !skipWhenEmpty || val != "" {
			if val != "" {
				val = assign + val
			}
			opts = append(opts, k+val)
		}
	}
	if len(opts) != 0 {
		return joiner + strings.Join(opts, sep)
	}
	return ""
}

func quotePostgresValue(v string) string {
	if v == "" || !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func mode(p string) fs.FileMode {
	fi, err := Stat(p)
	if err != nil {
		return 0
	}
	return fi.Mode()
}

// resolveSocket splits p into the longest prefix that is a unix socket and the remainder.
func resolveSocket(p string) (string, string) {
	dir := p
	for dir != "" && dir != "/" && dir != "." {
		if mode(dir)&fs.ModeSocket != 0 {
			return dir, strings.TrimPrefix(strings.TrimPrefix(p, dir), "/")
		}
		dir = path.Dir(dir)
	}
	return p, ""
}

// resolveDir splits p into the longest prefix that is a directory, an optional :port suffix on
// it, and the remainder (the database name).
func resolveDir(p string) (string, string, string) {
	dir := p
	for dir != "" && dir != "/" && dir != "." {
		port := ""
		i, j := strings.LastIndex(dir, ":"), strings.LastIndex(dir, "/")
		if i != -1 && i > j {
			port, dir = dir[i+1:], dir[:i]
		}
		if mode(dir).IsDir() {
			rest := strings.TrimPrefix(p, dir)
			if port != "" {
				rest = strings.TrimPrefix(rest, ":"+port)
			}
			return dir, port, strings.TrimPrefix(rest, "/")
		}
		if j != -1 {
			dir = dir[:j]
		} else {
			dir = ""
		}
	}
	return p, "", ""
}
