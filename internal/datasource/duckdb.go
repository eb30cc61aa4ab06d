package datasource

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/marlin-quant/dipsim/internal/logger"
	"github.com/marlin-quant/dipsim/internal/types"
	"github.com/marlin-quant/dipsim/pkg/errors"
)

// requiredColumns is the column order of an OHLCVT file, with or without a
// header row.
var requiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume", "trades"}

// DuckDBSource ingests CSV files into an in-memory DuckDB database and
// validates them with SQL before handing rows to the simulation.
type DuckDBSource struct {
	root   string
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// New creates a data source rooted at the given directory. The root is an
// explicit configuration value resolved once at process start; an empty root
// fails before any file access.
func New(root string, logger *logger.Logger) (*DuckDBSource, error) {
	if root == "" {
		return nil, errors.New(errors.ErrCodeMissingDataRoot, "data root is not configured")
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open database", err)
	}

	return &DuckDBSource{
		root:   root,
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Resolve implements DataSource.
func (d *DuckDBSource) Resolve(pair string, timeframe int) (Resolution, error) {
	path := filepath.Join(d.root, fmt.Sprintf("%s_%d.csv", pair, timeframe))
	if _, err := os.Stat(path); err == nil {
		return Resolution{
			Pair:               pair,
			Timeframe:          timeframe,
			EffectiveTimeframe: timeframe,
			Path:               path,
		}, nil
	}

	// The exact timeframe is unavailable: scan for any other timeframe of
	// the same pair. Glob results are lexically sorted, so the first match
	// is deterministic.
	matches, err := filepath.Glob(filepath.Join(d.root, pair+"_*.csv"))
	if err != nil {
		return Resolution{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan data root", err)
	}

	if len(matches) == 0 {
		return Resolution{}, errors.Newf(errors.ErrCodeDataNotFound,
			"data file not found: %s, and no alternative files exist for pair %s in %s", path, pair, d.root)
	}

	available := availableTimeframes(matches)
	fallback := matches[0]
	effective := timeframeFromPath(fallback)

	d.logger.Warn("requested timeframe unavailable, substituting fallback file",
		zap.String("pair", pair),
		zap.Int("requested_timeframe", timeframe),
		zap.Ints("available_timeframes", available),
		zap.String("fallback_file", fallback),
	)

	return Resolution{
		Pair:                pair,
		Timeframe:           timeframe,
		EffectiveTimeframe:  effective,
		Path:                fallback,
		Fallback:            true,
		AvailableTimeframes: available,
	}, nil
}

// Ingest implements DataSource.
func (d *DuckDBSource) Ingest(res Resolution) error {
	hasHeader, columns, err := sniffHeader(res.Path)
	if err != nil {
		return err
	}

	if columns != len(requiredColumns) {
		return errors.Newf(errors.ErrCodeMissingColumns,
			"%s has %d columns, expected %s", res.Path, columns, strings.Join(requiredColumns, ","))
	}

	if _, err := d.db.Exec(`DROP TABLE IF EXISTS bars_raw; DROP TABLE IF EXISTS bars;`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to reset staging tables", err)
	}

	// Stage everything as VARCHAR so that type problems surface as
	// validation errors rather than load failures. null_padding turns
	// short rows into NULL cells, which the missing-value pass drops.
	columnSpecs := make([]string, 0, len(requiredColumns))
	for _, col := range requiredColumns {
		columnSpecs = append(columnSpecs, fmt.Sprintf("'%s': 'VARCHAR'", col))
	}

	stage := fmt.Sprintf(
		`CREATE TABLE bars_raw AS SELECT * FROM read_csv('%s', header=%t, columns={%s}, null_padding=true)`,
		sqlQuote(res.Path), hasHeader, strings.Join(columnSpecs, ", "),
	)
	if _, err := d.db.Exec(stage); err != nil {
		return errors.Wrapf(errors.ErrCodeMissingColumns, err,
			"failed to read %s: expected columns %s", res.Path, strings.Join(requiredColumns, ","))
	}

	if err := d.dropMissingValueRows(); err != nil {
		return err
	}

	if err := d.validateNumericColumns(); err != nil {
		return err
	}

	if err := d.validateNonNegative(); err != nil {
		return err
	}

	// Coerce the timestamp to an integer and re-sort ascending: the
	// simulation relies on ordered input and never re-sorts.
	finalize := `
		CREATE TABLE bars AS
		SELECT
			CAST(CAST(timestamp AS DOUBLE) AS BIGINT) AS timestamp,
			CAST(open AS DOUBLE) AS open,
			CAST(high AS DOUBLE) AS high,
			CAST(low AS DOUBLE) AS low,
			CAST(close AS DOUBLE) AS close,
			CAST(volume AS DOUBLE) AS volume,
			CAST(CAST(trades AS DOUBLE) AS BIGINT) AS trades
		FROM bars_raw
		ORDER BY timestamp ASC
	`
	if _, err := d.db.Exec(finalize); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to finalize bars table", err)
	}

	if _, err := d.db.Exec(`DROP TABLE bars_raw`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop staging table", err)
	}

	return nil
}

// dropMissingValueRows removes rows with NULL or empty cells, warning about
// the dropped count. Missing values are a data-quality warning, not an error.
func (d *DuckDBSource) dropMissingValueRows() error {
	predicates := make([]string, 0, len(requiredColumns))
	for _, col := range requiredColumns {
		predicates = append(predicates, fmt.Sprintf("%s IS NULL OR trim(%s) = ''", col, col))
	}

	where := strings.Join(predicates, " OR ")

	var dropped int
	if err := d.db.QueryRow(`SELECT count(*) FROM bars_raw WHERE ` + where).Scan(&dropped); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to count rows with missing values", err)
	}

	if dropped == 0 {
		return nil
	}

	if _, err := d.db.Exec(`DELETE FROM bars_raw WHERE ` + where); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop rows with missing values", err)
	}

	d.logger.Warn("dropped rows with missing values",
		zap.Int("rows", dropped),
	)

	return nil
}

// validateNumericColumns checks that every cell casts to a number.
func (d *DuckDBSource) validateNumericColumns() error {
	for _, col := range requiredColumns {
		var bad int

		query := fmt.Sprintf(`SELECT count(*) FROM bars_raw WHERE TRY_CAST(%s AS DOUBLE) IS NULL`, col)
		if err := d.db.QueryRow(query).Scan(&bad); err != nil {
			return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to check column %s", col)
		}

		if bad > 0 {
			return errors.Newf(errors.ErrCodeColumnNotNumeric,
				"column %s must be numeric (%d non-numeric values)", col, bad)
		}
	}

	return nil
}

// validateNonNegative rejects negative prices, volumes and trade counts.
func (d *DuckDBSource) validateNonNegative() error {
	for _, col := range requiredColumns[1:] {
		var bad int

		query := fmt.Sprintf(`SELECT count(*) FROM bars_raw WHERE CAST(%s AS DOUBLE) < 0`, col)
		if err := d.db.QueryRow(query).Scan(&bad); err != nil {
			return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to check column %s", col)
		}

		if bad > 0 {
			return errors.Newf(errors.ErrCodeNegativeValues,
				"column %s contains negative values (%d rows)", col, bad)
		}
	}

	return nil
}

// Count implements DataSource.
func (d *DuckDBSource) Count() (int, error) {
	var count int

	query, args, err := d.sq.Select("count(*)").From("bars").ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// ReadAll implements DataSource.
func (d *DuckDBSource) ReadAll() func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		query, args, err := d.sq.
			Select(requiredColumns...).
			From("bars").
			OrderBy("timestamp ASC").
			ToSql()
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build select query", err))
			return
		}

		rows, err := d.db.Query(query, args...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var bar types.Bar
			if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Trades); err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err))
				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate bars", err))
		}
	}
}

// Close implements DataSource.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}

// sniffHeader reports whether the first line of the file is a header row,
// along with its field count. A line whose fields all parse as numbers is
// data, anything else is a header.
func sniffHeader(path string) (bool, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, 0, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false, 0, errors.Newf(errors.ErrCodeEmptyData, "data file is empty: %s", path)
	}

	fields := strings.Split(scanner.Text(), ",")
	for _, field := range fields {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return true, len(fields), nil
		}
	}

	return false, len(fields), nil
}

// availableTimeframes extracts the sorted, de-duplicated timeframes from a
// list of {pair}_{timeframe}.csv paths.
func availableTimeframes(paths []string) []int {
	seen := map[int]bool{}

	for _, p := range paths {
		if tf := timeframeFromPath(p); tf > 0 && !seen[tf] {
			seen[tf] = true
		}
	}

	timeframes := make([]int, 0, len(seen))
	for tf := range seen {
		timeframes = append(timeframes, tf)
	}

	sort.Ints(timeframes)

	return timeframes
}

// timeframeFromPath parses the timeframe out of a {pair}_{timeframe}.csv
// file name, returning 0 when the name does not follow the convention.
func timeframeFromPath(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return 0
	}

	tf, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0
	}

	return tf
}

// sqlQuote escapes single quotes for safe embedding in a SQL string literal.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
