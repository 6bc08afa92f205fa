package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	internal "github.com/openstandia/connector-csv/csvconn"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	// Connector is the primary object class, usually accounts
	Connector ObjectClassConfig `mapstructure:"connector"`
	// ObjectClasses lists additional object classes, each backed by its own file
	ObjectClasses []ObjectClassConfig `mapstructure:"-"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Watch         WatchConfig         `mapstructure:"watch"`
}

// ObjectClassConfig describes one csv file exposed as an object class.
type ObjectClassConfig struct {
	ObjectClass string `mapstructure:"objectClass"`
	FilePath    string `mapstructure:"filePath"`
	TmpFolder   string `mapstructure:"tmpFolder"`
	Encoding    string `mapstructure:"encoding"`

	FieldDelimiter          string `mapstructure:"fieldDelimiter"`
	Escape                  string `mapstructure:"escape"`
	CommentMarker           string `mapstructure:"commentMarker"`
	Quote                   string `mapstructure:"quote"`
	QuoteMode               string `mapstructure:"quoteMode"`
	RecordSeparator         string `mapstructure:"recordSeparator"`
	IgnoreEmptyLines        bool   `mapstructure:"ignoreEmptyLines"`
	IgnoreSurroundingSpaces bool   `mapstructure:"ignoreSurroundingSpaces"`
	Trim                    bool   `mapstructure:"trim"`
	TrailingDelimiter       bool   `mapstructure:"trailingDelimiter"`
	HeaderExists            bool   `mapstructure:"headerExists"`

	UniqueAttribute   string `mapstructure:"uniqueAttribute"`
	NameAttribute     string `mapstructure:"nameAttribute"`
	PasswordAttribute string `mapstructure:"passwordAttribute"`

	MultivalueDelimiter  string   `mapstructure:"multivalueDelimiter"`
	MultivalueAttributes []string `mapstructure:"multivalueAttributes"`

	CompositeUniqueAttributes         []string `mapstructure:"compositeUniqueAttributes"`
	CompositeUniqueAttributeDelimiter string   `mapstructure:"compositeUniqueAttributeDelimiter"`

	GroupByEnabled       bool `mapstructure:"groupBy"`
	PreserveOldSyncFiles int  `mapstructure:"preserveOldSyncFiles"`

	Container bool `mapstructure:"container"`
	Auxiliary bool `mapstructure:"auxiliary"`

	LockTimeoutSeconds    int `mapstructure:"lockTimeoutSeconds"`
	LockStaleAfterMinutes int `mapstructure:"lockStaleAfterMinutes"` // 0 disables stale lock recovery
}

// LoggingConfig stores logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

// WatchConfig stores settings of the live synchronization loop.
type WatchConfig struct {
	DebounceMillis int `mapstructure:"debounceMillis"`
}

// DefaultObjectClassConfig returns an object class config with every
// default applied except the paths and attribute names.
func DefaultObjectClassConfig() ObjectClassConfig {
	return ObjectClassConfig{
		ObjectClass:                       internal.DefaultObjectClass,
		Encoding:                          internal.DefaultEncoding,
		FieldDelimiter:                    internal.DefaultFieldDelimiter,
		Escape:                            internal.DefaultEscape,
		CommentMarker:                     internal.DefaultCommentMarker,
		Quote:                             internal.DefaultQuote,
		QuoteMode:                         internal.DefaultQuoteMode,
		RecordSeparator:                   internal.DefaultRecordSeparator,
		IgnoreEmptyLines:                  true,
		HeaderExists:                      true,
		CompositeUniqueAttributeDelimiter: internal.DefaultCompositeDelimiter,
		PreserveOldSyncFiles:              internal.DefaultPreserveOldSyncFiles,
		LockTimeoutSeconds:                internal.DefaultLockTimeoutSeconds,
		LockStaleAfterMinutes:             internal.DefaultLockStaleAfterMinutes,
	}
}

// ApplyDefaults fills derived values. It is safe to call more than once.
func (oc *ObjectClassConfig) ApplyDefaults() {
	if oc.ObjectClass == "" {
		oc.ObjectClass = internal.DefaultObjectClass
	}
	if oc.NameAttribute == "" {
		oc.NameAttribute = oc.UniqueAttribute
	}
	if oc.TmpFolder == "" && oc.FilePath != "" {
		oc.TmpFolder = filepath.Dir(oc.FilePath)
	}
	if oc.CompositeUniqueAttributeDelimiter == "" {
		oc.CompositeUniqueAttributeDelimiter = internal.DefaultCompositeDelimiter
	}
	if oc.Encoding == "" {
		oc.Encoding = internal.DefaultEncoding
	}
	if oc.LockTimeoutSeconds <= 0 {
		oc.LockTimeoutSeconds = internal.DefaultLockTimeoutSeconds
	}
}

// IsUniqueAndNameAttributeEqual reports whether the display name is taken
// from the unique attribute column.
func (oc *ObjectClassConfig) IsUniqueAndNameAttributeEqual() bool {
	return oc.UniqueAttribute == oc.NameAttribute
}

// IsMultivalue reports whether the attribute is configured as multivalued
func (oc *ObjectClassConfig) IsMultivalue(name string) bool {
	for _, attr := range oc.MultivalueAttributes {
		if attr == name {
			return true
		}
	}
	return false
}

// All returns every configured object class with defaults applied, the
// primary one first.
func (c *Config) All() []ObjectClassConfig {
	classes := make([]ObjectClassConfig, 0, len(c.ObjectClasses)+1)
	if c.Connector.FilePath != "" || len(c.ObjectClasses) == 0 {
		main := c.Connector
		main.ApplyDefaults()
		classes = append(classes, main)
	}
	for _, oc := range c.ObjectClasses {
		oc.ApplyDefaults()
		classes = append(classes, oc)
	}
	return classes
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // connector.filePath becomes CSVCONN_CONNECTOR_FILEPATH

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	extra, err := decodeObjectClasses(v.Get("objectClasses"))
	if err != nil {
		return nil, err
	}
	cfg.ObjectClasses = extra
	cfg.Connector.ApplyDefaults()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultObjectClassConfig()
	v.SetDefault("connector.objectClass", def.ObjectClass)
	v.SetDefault("connector.filePath", "")
	v.SetDefault("connector.tmpFolder", "")
	v.SetDefault("connector.encoding", def.Encoding)
	v.SetDefault("connector.fieldDelimiter", def.FieldDelimiter)
	v.SetDefault("connector.escape", def.Escape)
	v.SetDefault("connector.commentMarker", def.CommentMarker)
	v.SetDefault("connector.quote", def.Quote)
	v.SetDefault("connector.quoteMode", def.QuoteMode)
	v.SetDefault("connector.recordSeparator", def.RecordSeparator)
	v.SetDefault("connector.ignoreEmptyLines", def.IgnoreEmptyLines)
	v.SetDefault("connector.ignoreSurroundingSpaces", false)
	v.SetDefault("connector.trim", false)
	v.SetDefault("connector.trailingDelimiter", false)
	v.SetDefault("connector.headerExists", def.HeaderExists)
	v.SetDefault("connector.uniqueAttribute", "")
	v.SetDefault("connector.nameAttribute", "")
	v.SetDefault("connector.passwordAttribute", "")
	v.SetDefault("connector.multivalueDelimiter", "")
	v.SetDefault("connector.compositeUniqueAttributeDelimiter", def.CompositeUniqueAttributeDelimiter)
	v.SetDefault("connector.groupBy", false)
	v.SetDefault("connector.preserveOldSyncFiles", def.PreserveOldSyncFiles)
	v.SetDefault("connector.container", false)
	v.SetDefault("connector.auxiliary", false)
	v.SetDefault("connector.lockTimeoutSeconds", def.LockTimeoutSeconds)
	v.SetDefault("connector.lockStaleAfterMinutes", def.LockStaleAfterMinutes)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSizeMB", 50)
	v.SetDefault("logging.maxBackups", 3)
	v.SetDefault("logging.maxAgeDays", 28)

	v.SetDefault("watch.debounceMillis", internal.DefaultWatchDebounceMillis)
}

// decodeObjectClasses decodes the objectClasses list on top of the defaults,
// so omitted keys keep their default value instead of the zero value.
func decodeObjectClasses(raw interface{}) ([]ObjectClassConfig, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("objectClasses must be a list, got %T", raw)
	}

	classes := make([]ObjectClassConfig, 0, len(items))
	for i, item := range items {
		oc := DefaultObjectClassConfig()
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &oc,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}
		if err := decoder.Decode(item); err != nil {
			return nil, fmt.Errorf("unable to decode objectClasses[%d]: %w", i, err)
		}
		oc.ApplyDefaults()
		classes = append(classes, oc)
	}
	return classes, nil
}
