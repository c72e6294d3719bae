package models

// Config mirrors the sections of dwh.cfg.
type Config struct {
	Cluster   Cluster   `mapstructure:"cluster" yaml:"cluster"`
	IAMRole   IAMRole   `mapstructure:"iam_role" yaml:"iam_role"`
	S3        S3        `mapstructure:"s3" yaml:"s3"`
	Warehouse Warehouse `mapstructure:"warehouse" yaml:"warehouse"`
}

// Cluster holds the database endpoint and login.
type Cluster struct {
	Host     string `mapstructure:"host" yaml:"host"`
	DBName   string `mapstructure:"db_name" yaml:"db_name"`
	User     string `mapstructure:"db_user" yaml:"db_user"`
	Password string `mapstructure:"db_password" yaml:"db_password"`
	Port     int    `mapstructure:"db_port" yaml:"db_port"`
}

// IAMRole identifies the role the warehouse assumes for bulk loads.
type IAMRole struct {
	ARN string `mapstructure:"arn" yaml:"arn"`
}

// S3 holds the source locations for the staging loads.
type S3 struct {
	LogData     string `mapstructure:"log_data" yaml:"log_data"`
	LogJSONPath string `mapstructure:"log_jsonpath" yaml:"log_jsonpath"`
	SongData    string `mapstructure:"song_data" yaml:"song_data"`
	Region      string `mapstructure:"region" yaml:"region"`
}

// Warehouse selects the SQL dialect (redshift, postgres or snowflake) and
// engine specific connection settings. Account, Warehouse and Role apply to
// snowflake only. Timeout is a duration such as "30m" or bare seconds.
type Warehouse struct {
	Dialect   string `mapstructure:"dialect" yaml:"dialect"`
	Account   string `mapstructure:"account" yaml:"account"`
	Warehouse string `mapstructure:"warehouse" yaml:"warehouse"`
	Schema    string `mapstructure:"schema" yaml:"schema"`
	Role      string `mapstructure:"role" yaml:"role"`
	SSLMode   string `mapstructure:"sslmode" yaml:"sslmode"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
}
