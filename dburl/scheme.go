package dburl

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// Transport is the allowed transport protocol types in a database URL scheme
type Transport uint

// Transport types
const (
	TransportNone Transport = 0
	TransportTCP  Transport = 1
	TransportUDP  Transport = 2
	TransportUnix Transport = 4
	TransportAny  Transport = 8
)

// Generator builds a DSN (and optionally a Go driver name overriding URL.Driver) from a parsed URL
type Generator func(*URL) (string, string, error)

// Scheme wraps information used for registering a database URL scheme
type Scheme struct {
	// Driver is the name of the database driver the scheme maps to
	Driver string
	// Generator builds the DSN for the driver
	Generator Generator
	// Transport is the allowed transport protocols for the scheme
	Transport Transport
	// Opaque toggles whether the URL is opaque (the driver takes a path or file, not a host)
	Opaque bool
	// Aliases are additional names the scheme can be referred by
	Aliases []string
	// Override is the Go SQL driver to use instead of Driver
	Override string
}

// BaseSchemes returns the schemes registered at package initialization.
func BaseSchemes() []Scheme {
	return []Scheme{
		{"file", GenOpaque, 0, true, []string{"file"}, ""},
		// core databases
		{"mysql", GenMysql, TransportTCP | TransportUDP | TransportUnix, false, []string{"mariadb", "maria", "percona", "aurora"}, ""},
		{"oracle", GenFromURL("oracle://localhost:1521"), 0, false, []string{"ora", "oci", "oci8", "odpi", "odpi-c"}, ""},
		{"postgres", GenPostgres, TransportUnix, false, []string{"pg", "postgresql", "pgsql"}, ""},
		{"sqlite3", GenOpaque, 0, true, []string{"sqlite"}, ""},
		{"sqlserver", GenSqlserver, 0, false, []string{"ms", "mssql", "azuresql"}, ""},
		// wire compatibles
		{"cockroachdb", GenFromURL("postgres://localhost:26257/?sslmode=disable"), 0, false, []string{"cr", "cockroach", "crdb", "cdb"}, "postgres"},
		{"memsql", GenMysql, 0, false, nil, "mysql"},
		{"redshift", GenFromURL("postgres://localhost:5439/"), 0, false, []string{"rs"}, "postgres"},
		{"tidb", GenMysql, 0, false, nil, "mysql"},
		{"vitess", GenMysql, 0, false, []string{"vt"}, "mysql"},
		// other databases
		{"adodb", GenAdodb, 0, false, []string{"ado"}, ""},
		{"awsathena", GenScheme("s3"), 0, false, []string{"s3", "aws", "athena"}, ""},
		{"avatica", GenFromURL("http://localhost:8765/"), 0, false, []string{"phoenix"}, ""},
		{"bigquery", GenScheme("bigquery"), 0, false, []string{"bq"}, ""},
		{"clickhouse", GenFromURL("clickhouse://localhost:9000/"), 0, false, []string{"ch"}, ""},
		{"duckdb", GenOpaque, 0, true, []string{"dk", "ddb", "duck"}, ""},
		{"cosmos", GenCosmos, 0, false, []string{"cm"}, ""},
		{"cql", GenCassandra, 0, false, []string{"ca", "cassandra", "datastax", "scy", "scylla"}, ""},
		{"csvq", GenOpaque, 0, true, []string{"csv", "tsv", "json"}, ""},
		{"databend", GenDatabend, 0, false, []string{"dd", "bend"}, ""},
		{"exasol", GenExasol, 0, false, []string{"ex", "exa"}, ""},
		{"firebirdsql", GenFirebird, 0, false, []string{"fb", "firebird"}, ""},
		{"flightsql", GenScheme("flightsql"), 0, false, []string{"fl", "flight"}, ""},
		{"genji", GenOpaque, 0, true, []string{"gj"}, ""},
		{"h2", GenFromURL("h2://localhost:9092/"), 0, false, nil, ""},
		{"hdb", GenScheme("hdb"), 0, false, []string{"sa", "saphana", "sap", "hana"}, ""},
		{"hive", GenSchemeTruncate, 0, false, nil, ""},
		{"ignite", GenIgnite, 0, false, []string{"ig", "gridgain"}, ""},
		{"impala", GenScheme("impala"), 0, false, nil, ""},
		{"maxcompute", GenSchemeTruncate, 0, false, []string{"mc"}, ""},
		{"n1ql", GenFromURL("http://localhost:9000/"), 0, false, []string{"couchbase"}, ""},
		{"nzgo", GenPostgres, TransportUnix, false, []string{"nz", "netezza"}, ""},
		{"odbc", GenOdbc, TransportAny, false, nil, ""},
		{"oleodbc", GenOleOdbc, TransportAny, false, []string{"oo", "ole"}, "adodb"},
		{"ots", GenTableStore, TransportAny, false, []string{"tablestore"}, ""},
		{"presto", GenPresto, 0, false, []string{"prestodb", "prestos", "prs", "prestodbs"}, ""},
		{"ql", GenOpaque, 0, true, []string{"ql", "cznic", "cznicql"}, ""},
		{"snowflake", GenSnowflake, 0, false, []string{"sf"}, ""},
		{"spanner", GenSpanner, 0, false, []string{"sp"}, ""},
		{"tds", GenFromURL("http://localhost:5000/"), 0, false, []string{"ax", "ase", "sapase"}, ""},
		{"trino", GenPresto, 0, false, []string{"trino", "trinos", "trs"}, ""},
		{"vertica", GenFromURL("vertica://localhost:5433/"), 0, false, nil, ""},
		{"voltdb", GenVoltdb, 0, false, []string{"volt", "vdb"}, ""},
	}
}

var (
	registryMu sync.RWMutex
	schemeMap  = map[string]*Scheme{}
	fileTypes  []fileType
)

func init() {
	for _, scheme := range BaseSchemes() {
		if err := Register(scheme); err != nil {
			panic(err)
		}
	}
	mustRegisterFileType("duckdb", isDuckdbHeader, `(?i)\.duckdb$`)
	mustRegisterFileType("sqlite3", isSqlite3Header, `(?i)\.(db|sqlite|sqlite3)$`)
}

// Register registers a Scheme. Every driver longer than two characters also receives a two
// character alias (its first two letters) unless one of its aliases is already two characters.
func Register(scheme Scheme) error {
	if scheme.Generator == nil {
		return errors.Errorf("must specify Generator when registering scheme %s", scheme.Driver)
	}
	if scheme.Opaque && scheme.Transport&TransportUnix != 0 {
		return errors.Errorf("scheme %s must support only Opaque or Unix protocols, not both", scheme.Driver)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := schemeMap[scheme.Driver]; ok {
		return errors.Errorf("scheme %s already registered", scheme.Driver)
	}
	sz := &Scheme{
		Driver:    scheme.Driver,
		Generator: scheme.Generator,
		Transport: scheme.Transport,
		Opaque:    scheme.Opaque,
		Override:  scheme.Override,
	}
	schemeMap[scheme.Driver] = sz

	hasShort := false
	for _, alias := range scheme.Aliases {
		if len(alias) == 2 {
			hasShort = true
		}
		if scheme.Driver == alias {
			continue
		}
		if err := registerAlias(scheme.Driver, alias, false); err != nil {
			return err
		}
	}
	if !hasShort && len(scheme.Driver) > 2 {
		if err := registerAlias(scheme.Driver, scheme.Driver[:2], false); err != nil {
			return err
		}
	}
	// a two character driver is its own short alias
	if len(sz.Aliases) == 0 || len(scheme.Driver) == 2 {
		sz.Aliases = append(sz.Aliases, scheme.Driver)
	}
	sortAliases(sz.Aliases)
	return nil
}

// RegisterAlias registers an additional alias for a registered scheme.
func RegisterAlias(name, alias string) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registerAlias(name, alias, true)
}

func registerAlias(name, alias string, doSort bool) error {
	scheme, ok := schemeMap[name]
	if !ok {
		return errors.Errorf("scheme %s not registered", name)
	}
	if doSort {
		for _, existing := range scheme.Aliases {
			if existing == alias {
				return errors.Errorf("scheme %s already has alias %s", name, alias)
			}
		}
	}
	if _, ok := schemeMap[alias]; ok {
		return errors.Errorf("scheme %s already registered", alias)
	}
	scheme.Aliases = append(scheme.Aliases, alias)
	if doSort {
		sortAliases(scheme.Aliases)
	}
	schemeMap[alias] = scheme
	return nil
}

// Unregister removes a scheme (by driver name or alias) and all of its aliases. It returns the
// removed scheme, or nil if nothing was registered under name.
func Unregister(name string) *Scheme {
	registryMu.Lock()
	defer registryMu.Unlock()

	scheme, ok := schemeMap[name]
	if !ok {
		return nil
	}
	for key, registered := range schemeMap {
		if registered == scheme {
			delete(schemeMap, key)
		}
	}
	return scheme
}

// Protocols returns the valid protocol names (driver and aliases) for a registered scheme, or nil
// if name is not registered.
func Protocols(name string) []string {
	driver, aliases := SchemeDriverAndAliases(name)
	if driver == "" {
		return nil
	}
	protocols := []string{driver}
	for _, alias := range aliases {
		if alias != driver {
			protocols = append(protocols, alias)
		}
	}
	return protocols
}

// SchemeDriverAndAliases returns the registered driver and aliases for name.
func SchemeDriverAndAliases(name string) (string, []string) {
	scheme, ok := lookupScheme(name)
	if !ok {
		return "", nil
	}
	return scheme.Driver, append([]string(nil), scheme.Aliases...)
}

func lookupScheme(name string) (*Scheme, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	scheme, ok := schemeMap[name]
	return scheme, ok
}

func sortAliases(aliases []string) {
	sort.SliceStable(aliases, func(i, j int) bool {
		return len(aliases[i]) < len(aliases[j])
	})
}

type fileType struct {
	driver string
	f      func([]byte) bool
	ext    *regexp.Regexp
}

// RegisterFileType registers a file header detection func and an extension regexp for a driver.
// File types are consulted by SchemeType in registration order, most recent first.
func RegisterFileType(driver string, f func([]byte) bool, ext string) error {
	extRE, err := regexp.Compile(ext)
	if err != nil {
		return errors.Wrapf(err, "invalid extension regexp %s", ext)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	fileTypes = append([]fileType{{driver: driver, f: f, ext: extRE}}, fileTypes...)
	return nil
}

func mustRegisterFileType(driver string, f func([]byte) bool, ext string) {
	if err := RegisterFileType(driver, f, ext); err != nil {
		panic(err)
	}
}

func registeredFileTypes() []fileType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]fileType(nil), fileTypes...)
}

var sqlite3Header = []byte("SQLite format 3\000")

func isSqlite3Header(buf []byte) bool {
	return bytes.HasPrefix(buf, sqlite3Header)
}

var duckdbRE = regexp.MustCompile(`(?s)^.{8}DUCK.{8}`)

func isDuckdbHeader(buf []byte) bool {
	return duckdbRE.Match(buf)
}

// Stat is the func used to stat paths while resolving scheme types, opaque paths and unix sockets.
var Stat = os.Stat

// SchemeType returns the scheme type for a path without a scheme. On unix systems an existing
// directory resolves to postgres and a socket to mysql. Otherwise an existing file is matched by
// its header, and a missing file by its extension.
func SchemeType(name string) (string, error) {
	types := registeredFileTypes()
	if runtime.GOOS != "windows" && !(isMissing(name) && matchExtension(types, name) != "") {
		if typ, ok := resolveType(name); ok {
			return typ, nil
		}
	}

	if f, err := os.Open(name); err == nil {
		defer f.Close()
		buf := make([]byte, 64)
		n, _ := f.Read(buf)
		if n == 0 {
			return "sqlite3", nil
		}
		for _, typ := range types {
			if typ.f(buf[:n]) {
				return typ.driver, nil
			}
		}
		return "", ErrUnknownFileHeader
	}

	if driver := matchExtension(types, name); driver != "" {
		return driver, nil
	}
	return "", ErrUnknownFileExtension
}

// a missing file with a known extension (e.g. ./new.db) must not resolve to its parent directory
func isMissing(name string) bool {
	_, err := Stat(name)
	return err != nil
}

func matchExtension(types []fileType, name string) string {
	ext := filepath.Ext(name)
	for _, typ := range types {
		if typ.ext.MatchString(ext) {
			return typ.driver
		}
	}
	return ""
}

func resolveType(s string) (string, bool) {
	if i := strings.LastIndex(s, "?"); i != -1 {
		if _, err := Stat(s[:i]); err == nil {
			s = s[:i]
		}
	}
	dir := s
	for dir != "" && dir != "/" && dir != "." {
		// chop off :4444 port
		i, j := strings.LastIndex(dir, ":"), strings.LastIndex(dir, "/")
		if i != -1 && i > j {
			dir = dir[:i]
		}
		fi, err := Stat(dir)
		switch {
		case err == nil && fi.IsDir():
			return "postgres", true
		case err == nil && fi.Mode()&fs.ModeSocket != 0:
			return "mysql", true
		case err == nil:
			return "", false
		}
		if j != -1 {
			dir = dir[:j]
		} else {
			dir = ""
		}
	}
	return "", false
}
