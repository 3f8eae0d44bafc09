package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"golang.org/x/time/rate"

	"github.com/warelens/warelens/internal/models"
	"github.com/warelens/warelens/pkg/config"
)

// Telemetry export tables. The platform exporter lands query history and
// warehouse metadata into the `telemetry` database; the per-day, per-user and
// per-hour sets are aggregated server-side from query_history.
const (
	queryHistoryTable   = "telemetry.query_history"
	warehouseUsageTable = "telemetry.warehouse_usage"
	warehousesTable     = "telemetry.warehouses"
)

// Client wraps the ClickHouse connection to the telemetry export. Every
// query goes through the rate limiter and the retry policy.
type Client struct {
	conn    *sql.DB
	cfg     *config.Config
	limiter *rate.Limiter
	retry   retryConfig
}

// NewClient connects to the telemetry store and verifies the connection.
func NewClient(cfg *config.Config) (*Client, error) {
	opts, err := clickhouse.ParseDSN(cfg.TelemetryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse telemetry DSN: %w", err)
	}

	opts.MaxOpenConns = 10
	opts.MaxIdleConns = 5
	opts.ConnMaxLifetime = time.Hour
	opts.ReadTimeout = 10 * time.Minute
	opts.DialTimeout = 30 * time.Second

	// Readonly exporter accounts reject session settings such as
	// max_execution_time, so send none.
	opts.Settings = nil

	conn := clickhouse.OpenDB(opts)
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping telemetry store: %w", err)
	}
	slog.Debug("connected to telemetry store", "addr", opts.Addr[0])

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		conn:    conn,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		retry:   defaultRetryConfig(),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rows *sql.Rows
	err := executeWithRetry(ctx, c.retry, func() error {
		var qerr error
		rows, qerr = c.conn.QueryContext(ctx, q, args...)
		return qerr
	})
	return rows, err
}

func (c *Client) lookbackDays() int {
	days := int(c.cfg.LookbackPeriod.Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

// FetchExecutions pages through query_history for the lookback window. Rows
// that fail to scan are skipped with a warning; pagination stops at MaxRows.
func (c *Client) FetchExecutions(ctx context.Context) ([]models.QueryExecution, error) {
	q := fmt.Sprintf(`
		SELECT
			statement_id,
			warehouse_id,
			workspace_id,
			user,
			query_text,
			statement_type,
			client_application,
			status,
			error_message,
			dashboard_id,
			notebook_id,
			job_id,
			alert_id,
			genie_space,
			start_time,
			end_time,
			duration_ms,
			compile_ms,
			queue_ms,
			compute_wait_ms,
			execute_ms,
			fetch_ms,
			task_total_ms,
			read_bytes,
			read_rows,
			rows_produced,
			spilled_bytes,
			shuffled_bytes,
			written_bytes,
			read_files,
			pruned_files,
			from_result_cache,
			cache_hit_pct
		FROM %s
		WHERE start_time >= now() - INTERVAL ? DAY
		  AND status IN ('finished', 'failed', 'canceled')
		ORDER BY start_time DESC
		LIMIT ? OFFSET ?
	`, queryHistoryTable)

	var all []models.QueryExecution
	offset := 0
	for {
		rows, err := c.query(ctx, q, c.lookbackDays(), c.cfg.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("query history fetch failed at offset %d: %w", offset, err)
		}
		batch, err := scanExecutions(rows)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("query history scan failed at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)
		slog.Debug("fetched query history batch", "batch", len(batch), "total", len(all))

		if len(all) >= c.cfg.MaxRows {
			slog.Warn("max rows limit reached, truncating collection", "max_rows", c.cfg.MaxRows)
			all = all[:c.cfg.MaxRows]
			break
		}
		if len(batch) < c.cfg.BatchSize {
			break
		}
		offset += c.cfg.BatchSize
	}

	return all, nil
}

func scanExecutions(rows *sql.Rows) ([]models.QueryExecution, error) {
	var out []models.QueryExecution
	skipped := 0

	for rows.Next() {
		var e models.QueryExecution
		var fromCache uint8
		err := rows.Scan(
			&e.StatementID,
			&e.WarehouseID,
			&e.WorkspaceID,
			&e.User,
			&e.Query,
			&e.StatementType,
			&e.ClientApplication,
			&e.Status,
			&e.ErrorMessage,
			&e.Source.DashboardID,
			&e.Source.NotebookID,
			&e.Source.JobID,
			&e.Source.AlertID,
			&e.Source.GenieSpace,
			&e.StartTime,
			&e.EndTime,
			&e.DurationMs,
			&e.CompileMs,
			&e.QueueMs,
			&e.ComputeWaitMs,
			&e.ExecuteMs,
			&e.FetchMs,
			&e.TaskTotalMs,
			&e.ReadBytes,
			&e.ReadRows,
			&e.RowsProduced,
			&e.SpilledBytes,
			&e.ShuffledBytes,
			&e.WrittenBytes,
			&e.ReadFiles,
			&e.PrunedFiles,
			&fromCache,
			&e.CacheHitPct,
		)
		if err != nil {
			skipped++
			if skipped == 1 {
				slog.Warn("failed to scan query history row, skipping", "error", err)
			}
			continue
		}
		if e.StatementID == "" || e.Query == "" {
			skipped++
			continue
		}
		e.FromResultCache = fromCache != 0
		out = append(out, e)
	}
	if skipped > 0 {
		slog.Warn("skipped unscannable query history rows", "skipped", skipped)
	}

	if err := rows.Err(); err != nil {
		if len(out) > 0 {
			slog.Warn("row iteration error, keeping partial batch", "rows", len(out), "error", err)
			return out, nil
		}
		return nil, err
	}
	return out, nil
}

// FetchWarehouseCosts returns the reported spend per warehouse over the
// lookback window.
func (c *Client) FetchWarehouseCosts(ctx context.Context) ([]models.WarehouseCostRow, error) {
	q := fmt.Sprintf(`
		SELECT warehouse_id, sum(dollars), sum(dbus)
		FROM %s
		WHERE usage_date >= today() - ?
		GROUP BY warehouse_id
	`, warehouseUsageTable)

	rows, err := c.query(ctx, q, c.lookbackDays())
	if err != nil {
		return nil, fmt.Errorf("warehouse cost fetch failed: %w", err)
	}
	defer rows.Close()

	var out []models.WarehouseCostRow
	for rows.Next() {
		var r models.WarehouseCostRow
		if err := rows.Scan(&r.WarehouseID, &r.Dollars, &r.DBUs); err != nil {
			slog.Warn("failed to scan warehouse cost row, skipping", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchWarehouseConfigs returns the current configuration of every warehouse.
func (c *Client) FetchWarehouseConfigs(ctx context.Context) ([]models.WarehouseConfigRow, error) {
	q := fmt.Sprintf(`
		SELECT warehouse_id, name, size, min_clusters, max_clusters, auto_stop_minutes, serverless
		FROM %s
	`, warehousesTable)

	rows, err := c.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("warehouse config fetch failed: %w", err)
	}
	defer rows.Close()

	var out []models.WarehouseConfigRow
	for rows.Next() {
		var r models.WarehouseConfigRow
		var serverless uint8
		if err := rows.Scan(&r.WarehouseID, &r.Name, &r.Size, &r.MinClusters, &r.MaxClusters, &r.AutoStopMinutes, &serverless); err != nil {
			slog.Warn("failed to scan warehouse config row, skipping", "error", err)
			continue
		}
		r.Serverless = serverless != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchWarehouseDays aggregates query_history into one row per warehouse-day.
// Compute provisioning wait is the cold-start signal.
func (c *Client) FetchWarehouseDays(ctx context.Context) ([]models.WarehouseDayRow, error) {
	q := fmt.Sprintf(`
		SELECT
			warehouse_id,
			toDate(start_time) AS day,
			count() AS queries,
			sum(spilled_bytes),
			sum(queue_ms),
			sum(compute_wait_ms) AS cold_start_ms,
			sum(execute_ms),
			avg(duration_ms),
			quantile(0.95)(duration_ms)
		FROM %s
		WHERE start_time >= now() - INTERVAL ? DAY
		GROUP BY warehouse_id, day
		ORDER BY warehouse_id, day
	`, queryHistoryTable)

	rows, err := c.query(ctx, q, c.lookbackDays())
	if err != nil {
		return nil, fmt.Errorf("warehouse day fetch failed: %w", err)
	}
	defer rows.Close()

	var out []models.WarehouseDayRow
	for rows.Next() {
		var r models.WarehouseDayRow
		if err := rows.Scan(&r.WarehouseID, &r.Date, &r.Queries, &r.SpilledBytes,
			&r.QueueMs, &r.ColdStartMs, &r.ExecuteMs, &r.AvgRuntimeMs, &r.P95RuntimeMs); err != nil {
			slog.Warn("failed to scan warehouse day row, skipping", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchWarehouseUsers aggregates query_history into warehouse/user/source
// traffic rows. The source label is derived from the populated origin field.
func (c *Client) FetchWarehouseUsers(ctx context.Context) ([]models.WarehouseUserRow, error) {
	q := fmt.Sprintf(`
		SELECT
			warehouse_id,
			user,
			multiIf(
				dashboard_id != '', 'dashboard',
				notebook_id != '', 'notebook',
				job_id != '', 'job',
				alert_id != '', 'alert',
				genie_space != '', 'genie',
				'adhoc') AS source,
			count() AS queries
		FROM %s
		WHERE start_time >= now() - INTERVAL ? DAY
		GROUP BY warehouse_id, user, source
	`, queryHistoryTable)

	rows, err := c.query(ctx, q, c.lookbackDays())
	if err != nil {
		return nil, fmt.Errorf("warehouse user fetch failed: %w", err)
	}
	defer rows.Close()

	var out []models.WarehouseUserRow
	for rows.Next() {
		var r models.WarehouseUserRow
		if err := rows.Scan(&r.WarehouseID, &r.User, &r.Source, &r.Queries); err != nil {
			slog.Warn("failed to scan warehouse user row, skipping", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchWarehouseHours aggregates query_history into hour-of-day traffic rows.
func (c *Client) FetchWarehouseHours(ctx context.Context) ([]models.WarehouseHourRow, error) {
	q := fmt.Sprintf(`
		SELECT warehouse_id, toHour(start_time) AS hour, count(), sum(queue_ms)
		FROM %s
		WHERE start_time >= now() - INTERVAL ? DAY
		GROUP BY warehouse_id, hour
	`, queryHistoryTable)

	rows, err := c.query(ctx, q, c.lookbackDays())
	if err != nil {
		return nil, fmt.Errorf("warehouse hour fetch failed: %w", err)
	}
	defer rows.Close()

	var out []models.WarehouseHourRow
	for rows.Next() {
		var r models.WarehouseHourRow
		if err := rows.Scan(&r.WarehouseID, &r.Hour, &r.Queries, &r.QueueMs); err != nil {
			slog.Warn("failed to scan warehouse hour row, skipping", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
