package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"absensi-ai/internal/domain"
)

const siswaColumns = `s.id, s.nama, COALESCE(s.nis, ''), COALESCE(s.status, ''),
	COALESCE(s.nama_orang_tua, ''), COALESCE(k.id, 0), COALESCE(k.nama, '')`

const siswaFrom = `FROM siswa s
	LEFT JOIN penempatan_kelas pk ON pk.siswa_id = s.id AND pk.status = 'aktif'
	LEFT JOIN kelas k ON pk.kelas_id = k.id`

// SearchSiswa finds students whose name contains nama.
func (s *SQLStore) SearchSiswa(ctx context.Context, nama string, limit int) ([]domain.Siswa, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+siswaColumns+` `+siswaFrom+`
		WHERE s.nama LIKE ? AND s.deleted_at IS NULL
		ORDER BY s.nama, s.id
		LIMIT ?`, likePattern(nama), limit)
	if err != nil {
		return nil, fmt.Errorf("search siswa: %w", err)
	}
	return collectSiswa(rows)
}

// GetSiswa returns one student by ID.
func (s *SQLStore) GetSiswa(ctx context.Context, id int64) (*domain.Siswa, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+siswaColumns+` `+siswaFrom+` WHERE s.id = ? LIMIT 1`, id)
	if err != nil {
		return nil, fmt.Errorf("get siswa: %w", err)
	}
	list, err := collectSiswa(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.NewSubSystemError("siswa", "store.GetSiswa", domain.ErrNotFound, strconv.FormatInt(id, 10))
	}
	return &list[0], nil
}

// ListSiswaByKelas returns students actively placed in a class.
func (s *SQLStore) ListSiswaByKelas(ctx context.Context, kelasID int64) ([]domain.Siswa, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+siswaColumns+`
		FROM penempatan_kelas pk
		JOIN siswa s ON pk.siswa_id = s.id
		JOIN kelas k ON pk.kelas_id = k.id
		WHERE pk.kelas_id = ? AND pk.status = 'aktif' AND s.deleted_at IS NULL
		ORDER BY s.nama`, kelasID)
	if err != nil {
		return nil, fmt.Errorf("list siswa by kelas: %w", err)
	}
	return collectSiswa(rows)
}

func collectSiswa(rows *sql.Rows) ([]domain.Siswa, error) {
	defer rows.Close()
	var out []domain.Siswa
	for rows.Next() {
		var v domain.Siswa
		if err := rows.Scan(&v.ID, &v.Nama, &v.NIS, &v.Status, &v.NamaOrangTua, &v.KelasID, &v.Kelas); err != nil {
			return nil, fmt.Errorf("scan siswa: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

const kelasColumns = `k.id, k.nama, COALESCE(k.tingkat, 0), COALESCE(k.jurusan, ''), COALESCE(k.wali_kelas, ''),
	(SELECT COUNT(*) FROM penempatan_kelas pk WHERE pk.kelas_id = k.id AND pk.status = 'aktif')`

// SearchKelas finds classes whose name contains nama.
func (s *SQLStore) SearchKelas(ctx context.Context, nama string, limit int) ([]domain.Kelas, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+kelasColumns+` FROM kelas k
		WHERE k.nama LIKE ? AND k.deleted_at IS NULL
		ORDER BY k.nama LIMIT ?`, likePattern(nama), limit)
	if err != nil {
		return nil, fmt.Errorf("search kelas: %w", err)
	}
	return collectKelas(rows)
}

// GetKelas returns one class by ID.
func (s *SQLStore) GetKelas(ctx context.Context, id int64) (*domain.Kelas, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+kelasColumns+` FROM kelas k WHERE k.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get kelas: %w", err)
	}
	list, err := collectKelas(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.NewSubSystemError("kelas", "store.GetKelas", domain.ErrNotFound, strconv.FormatInt(id, 10))
	}
	return &list[0], nil
}

// ListKelas returns classes, optionally filtered by grade and department.
func (s *SQLStore) ListKelas(ctx context.Context, tingkat int, jurusan string) ([]domain.Kelas, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + kelasColumns + ` FROM kelas k WHERE k.deleted_at IS NULL`
	var args []any
	if tingkat > 0 {
		query += " AND k.tingkat = ?"
		args = append(args, tingkat)
	}
	if jurusan != "" {
		query += " AND UPPER(k.jurusan) = UPPER(?)"
		args = append(args, jurusan)
	}
	query += " ORDER BY k.tingkat, k.nama"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list kelas: %w", err)
	}
	return collectKelas(rows)
}

func collectKelas(rows *sql.Rows) ([]domain.Kelas, error) {
	defer rows.Close()
	var out []domain.Kelas
	for rows.Next() {
		var v domain.Kelas
		if err := rows.Scan(&v.ID, &v.Nama, &v.Tingkat, &v.Jurusan, &v.WaliKelas, &v.JumlahSiswa); err != nil {
			return nil, fmt.Errorf("scan kelas: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAbsensi returns attendance rows matching f, oldest first unless
// f.NewestFirst is set.
func (s *SQLStore) ListAbsensi(ctx context.Context, f domain.AbsensiFilter) ([]domain.Absensi, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.SiswaID > 0 {
		where = append(where, "a.siswa_id = ?")
		args = append(args, f.SiswaID)
	}
	if f.KelasID > 0 {
		where = append(where, "a.kelas_id = ?")
		args = append(args, f.KelasID)
	}
	if !f.From.IsZero() {
		where = append(where, "a.tanggal >= ?")
		args = append(args, f.From.Format(domain.DateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "a.tanggal <= ?")
		args = append(args, f.To.Format(domain.DateLayout))
	}
	if f.Status != "" {
		where = append(where, "LOWER(a.status) = LOWER(?)")
		args = append(args, string(f.Status))
	}
	if f.ExcludeStatus != "" {
		where = append(where, "LOWER(a.status) <> LOWER(?)")
		args = append(args, string(f.ExcludeStatus))
	}
	if f.Tingkat > 0 {
		where = append(where, "k.tingkat = ?")
		args = append(args, f.Tingkat)
	}
	if f.Jurusan != "" {
		where = append(where, "UPPER(k.jurusan) = UPPER(?)")
		args = append(args, f.Jurusan)
	}

	query := `SELECT a.id, a.siswa_id, COALESCE(a.kelas_id, 0), s.nama, COALESCE(s.nis, ''), COALESCE(k.nama, ''),
		a.tanggal, a.status, a.waktu_absen, COALESCE(a.metode, ''),
		a.latitude, a.longitude, a.jarak_meter, COALESCE(a.keterangan, '')
	FROM absensi a
	JOIN siswa s ON a.siswa_id = s.id
	LEFT JOIN kelas k ON a.kelas_id = k.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.NewestFirst {
		query += " ORDER BY a.tanggal DESC, k.nama, s.nama"
	} else {
		query += " ORDER BY a.tanggal, k.nama, s.nama"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewSubSystemError("store", "store.ListAbsensi", domain.ErrTimeout, err.Error())
		}
		return nil, fmt.Errorf("list absensi: %w", err)
	}
	defer rows.Close()

	var out []domain.Absensi
	for rows.Next() {
		var (
			a        domain.Absensi
			tanggal  dateValue
			status   string
			waktu    sql.NullString
			lat, lon sql.NullFloat64
			jarak    sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.SiswaID, &a.KelasID, &a.NamaSiswa, &a.NIS, &a.NamaKelas,
			&tanggal, &status, &waktu, &a.Metode, &lat, &lon, &jarak, &a.Keterangan); err != nil {
			return nil, fmt.Errorf("scan absensi: %w", err)
		}
		a.Tanggal = tanggal.Time
		a.Status = domain.Status(status)
		a.WaktuAbsen = clockValue(waktu)
		a.Latitude = floatPtr(lat)
		a.Longitude = floatPtr(lon)
		a.JarakMeter = floatPtr(jarak)
		out = append(out, a)
	}
	return out, rows.Err()
}

func likePattern(s string) string {
	return "%" + strings.TrimSpace(s) + "%"
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return new(v.Float64)
}

// clockValue normalizes TIME / DATETIME text to HH:MM:SS.
func clockValue(v sql.NullString) string {
	if !v.Valid || v.String == "" {
		return ""
	}
	s := v.String
	if i := strings.LastIndexAny(s, " T"); i >= 0 {
		s = s[i+1:]
	}
	if len(s) >= 8 {
		return s[:8]
	}
	if len(s) == 5 {
		return s + ":00"
	}
	return s
}

// dateValue scans DATE columns whether the driver yields time.Time,
// []byte or string.
type dateValue struct {
	time.Time
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	case nil:
		d.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
}

func (d *dateValue) parse(s string) error {
	if len(s) < len(domain.DateLayout) {
		return fmt.Errorf("invalid date %q", s)
	}
	t, err := time.Parse(domain.DateLayout, s[:len(domain.DateLayout)])
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
