package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "absensi.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	rpl, tkj          domain.Kelas
	budi, budi2, siti domain.Siswa
}

func seedFixture(t *testing.T, s *SQLStore) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture

	f.rpl = domain.Kelas{Nama: "X RPL 1", Tingkat: 10, Jurusan: "RPL", WaliKelas: "Bu Maria"}
	f.tkj = domain.Kelas{Nama: "XI TKJ 1", Tingkat: 11, Jurusan: "TKJ"}
	require.NoError(t, s.CreateKelas(ctx, &f.rpl))
	require.NoError(t, s.CreateKelas(ctx, &f.tkj))

	f.budi = domain.Siswa{Nama: "Budi Santoso", NIS: "1001", NamaOrangTua: "Pak Santoso", KelasID: f.rpl.ID}
	f.budi2 = domain.Siswa{Nama: "Budi Hartono", NIS: "1002", KelasID: f.tkj.ID}
	f.siti = domain.Siswa{Nama: "Siti Aminah", NIS: "1003", KelasID: f.rpl.ID}
	for _, v := range []*domain.Siswa{&f.budi, &f.budi2, &f.siti} {
		require.NoError(t, s.CreateSiswa(ctx, v))
	}

	rows := []domain.Absensi{
		{SiswaID: f.budi.ID, KelasID: f.rpl.ID, Tanggal: date("2026-03-02"), Status: "hadir", WaktuAbsen: "06:55:00", Metode: "gps",
			Latitude: new(0.0617), Longitude: new(111.4953), JarakMeter: new(12.5)},
		{SiswaID: f.budi.ID, KelasID: f.rpl.ID, Tanggal: date("2026-03-03"), Status: domain.StatusAlfa},
		{SiswaID: f.budi.ID, KelasID: f.rpl.ID, Tanggal: date("2026-03-04"), Status: domain.StatusSakit, Keterangan: "Demam"},
		{SiswaID: f.siti.ID, KelasID: f.rpl.ID, Tanggal: date("2026-03-03"), Status: domain.StatusHadir, WaktuAbsen: "07:01:30", Metode: "qr_code"},
		{SiswaID: f.budi2.ID, KelasID: f.tkj.ID, Tanggal: date("2026-03-03"), Status: "Alfa"},
	}
	for i := range rows {
		require.NoError(t, s.RecordAbsensi(ctx, &rows[i]))
	}
	return f
}

func TestOpenSQLiteMigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absensi.db")
	s, err := OpenSQLite(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "sqlite", s.Driver())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Host: "db.sekolah.local", Port: 3306, User: "root", Password: "rahasia", Name: "smksmartsis",
	})
	assert.Contains(t, dsn, "root:rahasia@tcp(db.sekolah.local:3306)/smksmartsis")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.NotContains(t, dsn, "parseTime=true")
}

func TestSearchSiswa(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	got, err := s.SearchSiswa(ctx, "budi", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Budi Hartono", got[0].Nama)
	assert.Equal(t, "XI TKJ 1", got[0].Kelas)
	assert.Equal(t, f.budi.ID, got[1].ID)

	got, err = s.SearchSiswa(ctx, "budi", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.DeleteSiswa(ctx, f.budi2.ID))
	got, err = s.SearchSiswa(ctx, "Budi", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Budi Santoso", got[0].Nama)
}

func TestGetSiswaNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSiswa(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.CodeStudentNotFound, domain.ErrorCodeOf(err))
}

func TestKelasQueries(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	k, err := s.GetKelas(ctx, f.rpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "X RPL 1", k.Nama)
	assert.Equal(t, 2, k.JumlahSiswa)
	assert.Equal(t, "Bu Maria", k.WaliKelas)

	found, err := s.SearchKelas(ctx, "rpl", 2)
	require.NoError(t, err)
	require.Len(t, found, 1)

	all, err := s.ListKelas(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tkj, err := s.ListKelas(ctx, 11, "tkj")
	require.NoError(t, err)
	require.Len(t, tkj, 1)
	assert.Equal(t, f.tkj.ID, tkj[0].ID)

	members, err := s.ListSiswaByKelas(ctx, f.rpl.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Budi Santoso", members[0].Nama)
	assert.Equal(t, "Siti Aminah", members[1].Nama)
}

func TestListAbsensiFilters(t *testing.T) {
	s := newTestStore(t)
	f := seedFixture(t, s)
	ctx := context.Background()

	t.Run("by siswa newest first", func(t *testing.T) {
		rows, err := s.ListAbsensi(ctx, domain.AbsensiFilter{SiswaID: f.budi.ID, NewestFirst: true})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "2026-03-04", rows[0].Date())
		assert.Equal(t, "Demam", rows[0].Keterangan)
		assert.Equal(t, "2026-03-02", rows[2].Date())
		require.NotNil(t, rows[2].JarakMeter)
		assert.InDelta(t, 12.5, *rows[2].JarakMeter, 0.001)
		assert.Equal(t, "06:55:00", rows[2].WaktuAbsen)
		assert.Nil(t, rows[1].Latitude)
	})

	t.Run("status ignores case", func(t *testing.T) {
		rows, err := s.ListAbsensi(ctx, domain.AbsensiFilter{Status: domain.StatusAlfa})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		rows, err = s.ListAbsensi(ctx, domain.AbsensiFilter{Status: domain.StatusHadir})
		require.NoError(t, err)
		assert.Len(t, rows, 2, "stored as both 'hadir' and 'Hadir'")
	})

	t.Run("single day excluding hadir", func(t *testing.T) {
		day := date("2026-03-03")
		rows, err := s.ListAbsensi(ctx, domain.AbsensiFilter{From: day, To: day, ExcludeStatus: domain.StatusHadir})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "X RPL 1", rows[0].NamaKelas)
		assert.Equal(t, "XI TKJ 1", rows[1].NamaKelas)
	})

	t.Run("by grade and limit", func(t *testing.T) {
		rows, err := s.ListAbsensi(ctx, domain.AbsensiFilter{Tingkat: 10, Jurusan: "rpl", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestSeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	end := date("2026-03-13")

	report, err := s.Seed(ctx, SeedOptions{End: end, Days: 13, Latitude: 0.0617, Longitude: 111.4953, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Kelas)
	assert.Equal(t, 24, report.Siswa)
	// 10 weekdays between 2026-02-28 and 2026-03-13 for 24 students.
	assert.Equal(t, 240, report.Absensi)

	rudi, err := s.SearchSiswa(ctx, "Rudi Hermawan", 2)
	require.NoError(t, err)
	require.Len(t, rudi, 1)
	alfa, err := s.ListAbsensi(ctx, domain.AbsensiFilter{SiswaID: rudi[0].ID, Status: domain.StatusAlfa})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(alfa), 4)

	_, err = s.Seed(ctx, SeedOptions{End: end})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestDateValueScan(t *testing.T) {
	var d dateValue
	require.NoError(t, d.Scan([]byte("2026-01-05")))
	assert.Equal(t, "2026-01-05", d.Format(domain.DateLayout))
	require.NoError(t, d.Scan("2026-01-06T00:00:00Z"))
	assert.Equal(t, 6, d.Day())
	require.NoError(t, d.Scan(time.Date(2026, 2, 1, 13, 0, 0, 0, time.Local)))
	assert.Equal(t, "2026-02-01", d.Format(domain.DateLayout))
	assert.Error(t, d.Scan("05/01"))
	assert.Error(t, d.Scan(42))
}
