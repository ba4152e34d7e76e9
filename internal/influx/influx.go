package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/bpsr-logs/livemeter/internal/model"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
)

// MeasurementHPReport is the measurement written for every delivery attempt.
const MeasurementHPReport = "hp_report"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx sink disabled")

const retentionSeconds = 60 * 60 * 24 * 90

// Manager writes HP report delivery outcomes to InfluxDB, falling back to a
// gzipped line-protocol file when the server is unreachable.
type Manager struct {
	cfg        config.InfluxConfig
	logger     *slog.Logger
	backupPath string
	now        func() time.Time

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, logger *slog.Logger, backupPath string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:        cfg,
		logger:     logger,
		backupPath: backupPath,
		now:        time.Now,
	}
}

// Connect establishes a connection to InfluxDB or opens the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.logger.Warn("InfluxDB unreachable, writing to backup file", "url", m.cfg.URL(), "backupPath", m.backupPath, "error", err)
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go m.drainErrors(m.writer.Errors())
	m.valid = true
	m.logger.Info("InfluxDB client initialized", "url", m.cfg.URL(), "bucket", m.cfg.Bucket)
	return nil
}

func (m *Manager) openBackup() error {
	if m.backupWriter != nil {
		return nil
	}
	if m.backupPath == "" {
		return errors.New("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info("Organization not found, creating", "org", m.cfg.Org)
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info("Bucket not found, creating", "bucket", m.cfg.Bucket)

		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

func (m *Manager) drainErrors(errorsCh <-chan error) {
	for writeErr := range errorsCh {
		m.logger.Error("Error sending data to InfluxDB", "bucket", m.cfg.Bucket, "error", writeErr)
	}
}

// ReportPoint builds the point recorded for one delivery attempt.
func ReportPoint(report model.HPReport, sendErr error, ts time.Time) *influxdb2_write.Point {
	status := "ok"
	if sendErr != nil {
		status = "failed"
	}

	point := influxdb2_write.NewPointWithMeasurement(MeasurementHPReport).
		AddTag("monster_id", strconv.FormatInt(int64(report.MonsterID), 10)).
		AddTag("line", strconv.FormatInt(int64(report.Line), 10)).
		AddTag("status", status).
		AddField("hp_pct", report.HPPct).
		AddField("pos_x", report.PosX).
		AddField("pos_y", report.PosY).
		SetTime(ts)
	if sendErr != nil {
		point.AddField("error", sendErr.Error())
	}
	return point
}

// ObserveReport records one delivery attempt. Write problems are logged.
func (m *Manager) ObserveReport(report model.HPReport, sendErr error) {
	if err := m.WritePoint(ReportPoint(report, sendErr, m.now())); err != nil {
		m.logger.Warn("Failed to record HP report telemetry", "error", err)
	}
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}

	if m.backupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.backupWriter != nil {
		errs = append(errs, m.backupWriter.Close())
		errs = append(errs, m.backupFile.Close())
		m.backupWriter = nil
		m.backupFile = nil
	}
	m.valid = false
	return errors.Join(errs...)
}
