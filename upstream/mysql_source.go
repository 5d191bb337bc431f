package upstream

import (
	"context"
	"errors"
	"fmt"
	mysqldrv "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"time"
)

const (
	defaultPayloadTable = "guild_payloads"
	defaultMaxOpenConns = 10
)

// MySQLConfig mysql 上游，表需包含 name、payload 两列
type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c *MySQLConfig) init() {
	if c.Table == "" {
		c.Table = defaultPayloadTable
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
}

// payloadRow 一行载荷
type payloadRow struct {
	Name    string `gorm:"column:name"`
	Payload string `gorm:"column:payload"`
}

// MySQLSource SELECT payload FROM table WHERE name = ?
type MySQLSource struct {
	db    *gorm.DB
	table string
}

// normalizeDSN 校验 DSN 并强制 parseTime
func normalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("upstream: mysql dsn is required")
	}
	dsnCfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("upstream: invalid mysql dsn: %w", err)
	}
	dsnCfg.ParseTime = true
	return dsnCfg.FormatDSN(), nil
}

// NewMySQLSource 新建，连接失败直接返回错误
func NewMySQLSource(cfg *MySQLConfig) (*MySQLSource, error) {
	cfg.init()
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &MySQLSource{db: db, table: cfg.Table}, nil
}

// Fetch 记录不存在返回 ErrNotFound
func (s *MySQLSource) Fetch(ctx context.Context, name string) (string, error) {
	var row payloadRow
	err := s.db.WithContext(ctx).Table(s.table).
		Select("name", "payload").
		Where("name = ?", name).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("upstream: query %s: %w", s.table, err)
	}
	return row.Payload, nil
}

// Close 关闭连接池
func (s *MySQLSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
