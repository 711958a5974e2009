package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"prod"`
	HTTPServer `yaml:"http_server"`
	Workbook   Workbook `yaml:"workbook"`
	Engine     Engine   `yaml:"engine"`
	Storage    Storage  `yaml:"storage"`
	Fallback   Fallback `yaml:"fallback"`
	CORS       CORS     `yaml:"cors"`

	AdminLogin string `yaml:"admin_login" env:"ADMIN_LOGIN"`
	AdminPass  string `yaml:"admin_pass" env:"ADMIN_PASS"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8000"`
	Timeout     time.Duration `yaml:"timeout" env-default:"60s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Workbook struct {
	TemplatePath   string        `yaml:"template_path" env:"EXCEL_TEMPLATE_PATH" env-default:"PORTALIA MC2 CONSULTANTS 2024 V03-24.xlsm"`
	WorkDir        string        `yaml:"work_dir" env:"WORKBOOK_WORK_DIR"`
	CommuneSheet   string        `yaml:"commune_sheet" env-default:"Communes"`
	MaxSessions    int64         `yaml:"max_sessions" env:"WORKBOOK_MAX_SESSIONS" env-default:"2"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" env-default:"30s"`
	CandidateGlobs []string      `yaml:"candidate_globs" env-default:"*.xlsm,*.xlsx"`
}

// Engine описывает внешний процесс табличного движка.
// Пустой Command: расчёт целиком внутри процесса (excelize).
type Engine struct {
	Command      []string      `yaml:"command" env:"ENGINE_COMMAND" env-separator:" "`
	MacroCommand []string      `yaml:"macro_command" env:"ENGINE_MACRO_COMMAND" env-separator:" "`
	StartTimeout time.Duration `yaml:"start_timeout" env-default:"2s"`
}

type Storage struct {
	DSN string `yaml:"dsn" env:"MYSQL_DSN"`
}

type Fallback struct {
	WorkedDays     int     `yaml:"worked_days" env-default:"18"`
	FixedFeeRate   float64 `yaml:"fixed_fee_rate" env-default:"0.08"`
	ProvisionRate  float64 `yaml:"provision_rate" env-default:"0.10"`
	EmployeeRate   float64 `yaml:"employee_rate" env-default:"0.22"`
	EmployerRate   float64 `yaml:"employer_rate" env-default:"0.12"`
	FixedAllowance float64 `yaml:"fixed_allowance" env-default:"198"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

func MustConfig() *Config {
	// .env нужен только локально, его отсутствие не ошибка
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return &cfg
}
