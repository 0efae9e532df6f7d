package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"parcelmap/internal/database"
	"parcelmap/internal/landvalue"
	"parcelmap/internal/render"
	"parcelmap/internal/types"
)

// Config holds the full application configuration.
type Config struct {
	Source    SourceConfig      `yaml:"source" mapstructure:"source"`
	Columns   types.Columns     `yaml:"columns" mapstructure:"columns"`
	Filter    FilterConfig      `yaml:"filter" mapstructure:"filter"`
	LandValue landvalue.Range   `yaml:"land_value" mapstructure:"land_value"`
	Map       MapConfig         `yaml:"map" mapstructure:"map"`
	Workers   int               `yaml:"workers" mapstructure:"workers"`
	Log       LogConfig         `yaml:"log" mapstructure:"log"`
	Oracle    database.DBConfig `yaml:"oracle" mapstructure:"oracle"`
}

// SourceConfig selects where the parcel layer is read from.
type SourceConfig struct {
	Kind      string `yaml:"kind" mapstructure:"kind"`
	Path      string `yaml:"path" mapstructure:"path"`
	Layer     string `yaml:"layer" mapstructure:"layer"`
	Separator string `yaml:"separator" mapstructure:"separator"`
}

// FilterConfig restricts the loaded rows. An empty city code keeps all.
type FilterConfig struct {
	CityCode string `yaml:"city_code" mapstructure:"city_code"`
}

// MapConfig controls the rendered maps.
type MapConfig struct {
	Width      int          `yaml:"width" mapstructure:"width"`
	Height     int          `yaml:"height" mapstructure:"height"`
	OutputDir  string       `yaml:"output_dir" mapstructure:"output_dir"`
	Projection string       `yaml:"projection" mapstructure:"projection"`
	LCC        LCCConfig    `yaml:"lcc" mapstructure:"lcc"`
	Colors     ColorsConfig `yaml:"colors" mapstructure:"colors"`
	Palette    []string     `yaml:"palette" mapstructure:"palette"`
}

// LCCConfig parameterizes the Lambert Conformal Conic projection, in
// degrees. False easting and northing are in output units.
type LCCConfig struct {
	Origin        float64 `yaml:"origin_lat" mapstructure:"origin_lat"`
	CentralLon    float64 `yaml:"central_lon" mapstructure:"central_lon"`
	Parallel1     float64 `yaml:"parallel1" mapstructure:"parallel1"`
	Parallel2     float64 `yaml:"parallel2" mapstructure:"parallel2"`
	FalseEasting  float64 `yaml:"false_easting" mapstructure:"false_easting"`
	FalseNorthing float64 `yaml:"false_northing" mapstructure:"false_northing"`
	UnitsPerMeter float64 `yaml:"units_per_meter" mapstructure:"units_per_meter"`
}

// ColorsConfig names the fill for each building-type category.
type ColorsConfig struct {
	SingleFamily string `yaml:"single_family" mapstructure:"single_family"`
	MultiFamily  string `yaml:"multi_family" mapstructure:"multi_family"`
	Other        string `yaml:"other" mapstructure:"other"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from path (or ./config.yaml when path is
// empty), PARCELMAP_* environment variables and defaults. A .env file in
// the working directory is loaded first; its DB_* variables feed the
// oracle section.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PARCELMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"oracle.host":            "DB_HOST",
		"oracle.port":            "DB_PORT",
		"oracle.service":         "DB_SERVICE",
		"oracle.username":        "DB_USERNAME",
		"oracle.password":        "DB_PASSWORD",
		"oracle.wallet_location": "DB_WALLET_LOCATION",
	} {
		if err := v.BindEnv(key, "PARCELMAP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", env)
		}
	}

	// Defaults
	v.SetDefault("source.kind", "shapefile")
	v.SetDefault("source.path", "data/OCPA_Data")
	v.SetDefault("source.layer", "PARCELS")
	v.SetDefault("source.separator", "|")
	v.SetDefault("columns.use_code", "DOR_CODE")
	v.SetDefault("columns.land_market_value", "LAND_MKT")
	v.SetDefault("columns.acreage", "ACREAGE")
	v.SetDefault("columns.city_code", "CITY_CODE")
	v.SetDefault("columns.geometry", "SHAPE")
	v.SetDefault("filter.city_code", "")
	v.SetDefault("land_value.lower_bound", landvalue.DefaultLowerBound)
	v.SetDefault("land_value.upper_bound", landvalue.DefaultUpperBound)
	v.SetDefault("map.width", 1200)
	v.SetDefault("map.height", 1000)
	v.SetDefault("map.output_dir", "out")
	v.SetDefault("map.projection", "none")
	v.SetDefault("map.lcc.origin_lat", 28.5)
	v.SetDefault("map.lcc.central_lon", -81.4)
	v.SetDefault("map.lcc.parallel1", 27.5)
	v.SetDefault("map.lcc.parallel2", 29.5)
	v.SetDefault("map.lcc.false_easting", 0)
	v.SetDefault("map.lcc.false_northing", 0)
	v.SetDefault("map.lcc.units_per_meter", 1)
	v.SetDefault("map.colors.single_family", "blue")
	v.SetDefault("map.colors.multi_family", "red")
	v.SetDefault("map.colors.other", "grey")
	v.SetDefault("map.palette", render.ViridisStops)
	v.SetDefault("workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("oracle.port", "1522")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
