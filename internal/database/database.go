package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"parcelmap/internal/types"

	_ "github.com/sijms/go-ora/v2"
)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			url.PathEscape(username), url.PathEscape(password), host, port, service, url.PathEscape(walletLocation))
	}

	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password), // escapes automatically
		Host:     host + ":" + port,
		Path:     "/" + service, // keep full service name
		RawQuery: "ssl=true",    // ADB requires TCPS on 1522
	}).String()
}

// DBConfig holds database connection configuration
type DBConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           string `yaml:"port" mapstructure:"port"`
	Service        string `yaml:"service" mapstructure:"service"`
	Username       string `yaml:"username" mapstructure:"username"`
	Password       string `yaml:"password" mapstructure:"password"`
	WalletLocation string `yaml:"wallet_location" mapstructure:"wallet_location"`
}

// Database holds the database connection and configuration
type Database struct {
	db     *sql.DB
	config DBConfig
}

// NewDatabase opens the connection and pings it.
func NewDatabase(ctx context.Context, config DBConfig) (*Database, error) {
	connStr := dsn(config.Username, config.Password, config.Host, config.Port, config.Service, config.WalletLocation)

	zap.L().Info("database: connecting to oracle",
		zap.String("host", config.Host),
		zap.String("service", config.Service),
		zap.Bool("wallet", config.WalletLocation != ""),
	)

	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, eris.Wrap(err, "database: open connection")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "database: ping")
	}

	return &Database{
		db:     db,
		config: config,
	}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// identRe matches a plain or schema-qualified Oracle identifier. Layer and
// column names are spliced into SQL, so anything else is rejected.
var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*(\.[A-Za-z][A-Za-z0-9_$#]*)?$`)

func checkIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return eris.Errorf("database: invalid %s name %q", kind, name)
	}
	return nil
}

// LayerColumns returns the column names of table layer.
func (d *Database) LayerColumns(ctx context.Context, layer string) ([]string, error) {
	if err := checkIdent("layer", layer); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, "SELECT * FROM "+layer+" WHERE 1 = 0")
	if err != nil {
		return nil, eris.Wrapf(err, "database: describe %s", layer)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "database: columns of %s", layer)
	}
	return names, nil
}

// parcelQuery builds the SELECT for a layer whose columns have already been
// resolved. The city column is optional.
func parcelQuery(layer string, cols types.Columns) (string, error) {
	for _, c := range []struct{ kind, name string }{
		{"layer", layer},
		{"column", cols.UseCode},
		{"column", cols.LandMarketValue},
		{"column", cols.Acreage},
		{"geometry column", cols.Geometry},
	} {
		if err := checkIdent(c.kind, c.name); err != nil {
			return "", err
		}
	}
	city := "NULL"
	if cols.CityCode != "" {
		if err := checkIdent("column", cols.CityCode); err != nil {
			return "", err
		}
		city = "TO_CHAR(" + cols.CityCode + ")"
	}

	return fmt.Sprintf(`
		SELECT
			TO_CHAR(%s), TO_CHAR(%s), TO_CHAR(%s), %s,
			SDO_UTIL.TO_WKBGEOMETRY(%s)
		FROM %s`,
		cols.UseCode, cols.LandMarketValue, cols.Acreage, city,
		cols.Geometry,
		layer,
	), nil
}

// QueryParcels reads every row of an Oracle Spatial parcel table. Required
// columns are checked against the table before the full scan.
func (d *Database) QueryParcels(ctx context.Context, layer string, want types.Columns) ([]types.Parcel, error) {
	names, err := d.LayerColumns(ctx, layer)
	if err != nil {
		return nil, err
	}
	cols, err := want.Resolve(names)
	if err != nil {
		return nil, eris.Wrapf(err, "database: layer %s", layer)
	}
	query, err := parcelQuery(layer, cols)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "database: query parcels from %s", layer)
	}
	defer rows.Close()

	var parcels []types.Parcel
	for rows.Next() {
		var (
			useCode, landValue, acreage, city sql.NullString
			shape                             []byte
		)
		if err := rows.Scan(&useCode, &landValue, &acreage, &city, &shape); err != nil {
			return nil, eris.Wrap(err, "database: scan parcel")
		}

		p := types.Parcel{
			UseCode:         strings.TrimSpace(useCode.String),
			LandMarketValue: types.ParseNumber(landValue.String),
			Acreage:         types.ParseNumber(acreage.String),
			CityCode:        strings.TrimSpace(city.String),
		}
		if len(shape) > 0 {
			g, err := wkb.Unmarshal(shape)
			if err != nil {
				zap.L().Debug("database: skipping undecodable geometry", zap.Error(err))
			} else {
				p.Geometry = g
			}
		}
		parcels = append(parcels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "database: iterate parcels")
	}

	return parcels, nil
}
