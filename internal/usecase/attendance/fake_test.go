package attendance

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"absensi-ai/internal/domain"
)

// memStore is an in-memory AttendanceStore with the same ordering rules
// as the SQL store.
type memStore struct {
	kelas []domain.Kelas
	siswa []domain.Siswa
	rows  []domain.Absensi
	err   error
}

func (m *memStore) SearchSiswa(_ context.Context, nama string, limit int) ([]domain.Siswa, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Siswa
	for _, v := range m.siswa {
		if strings.Contains(strings.ToLower(v.Nama), strings.ToLower(nama)) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nama < out[j].Nama })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetSiswa(_ context.Context, id int64) (*domain.Siswa, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, v := range m.siswa {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, domain.NewSubSystemError("siswa", "mem.GetSiswa", domain.ErrNotFound, "")
}

func (m *memStore) ListSiswaByKelas(_ context.Context, kelasID int64) ([]domain.Siswa, error) {
	var out []domain.Siswa
	for _, v := range m.siswa {
		if v.KelasID == kelasID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nama < out[j].Nama })
	return out, nil
}

func (m *memStore) SearchKelas(_ context.Context, nama string, limit int) ([]domain.Kelas, error) {
	var out []domain.Kelas
	for _, k := range m.kelas {
		if strings.Contains(strings.ToLower(k.Nama), strings.ToLower(nama)) {
			out = append(out, m.withCount(k))
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetKelas(_ context.Context, id int64) (*domain.Kelas, error) {
	for _, k := range m.kelas {
		if k.ID == id {
			k = m.withCount(k)
			return &k, nil
		}
	}
	return nil, domain.NewSubSystemError("kelas", "mem.GetKelas", domain.ErrNotFound, "")
}

func (m *memStore) ListKelas(_ context.Context, tingkat int, jurusan string) ([]domain.Kelas, error) {
	var out []domain.Kelas
	for _, k := range m.kelas {
		if (tingkat == 0 || k.Tingkat == tingkat) && (jurusan == "" || strings.EqualFold(k.Jurusan, jurusan)) {
			out = append(out, m.withCount(k))
		}
	}
	return out, nil
}

func (m *memStore) withCount(k domain.Kelas) domain.Kelas {
	k.JumlahSiswa = 0
	for _, v := range m.siswa {
		if v.KelasID == k.ID {
			k.JumlahSiswa++
		}
	}
	return k
}

func (m *memStore) kelasByID(id int64) domain.Kelas {
	for _, k := range m.kelas {
		if k.ID == id {
			return k
		}
	}
	return domain.Kelas{}
}

func (m *memStore) ListAbsensi(_ context.Context, f domain.AbsensiFilter) ([]domain.Absensi, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Absensi
	for _, a := range m.rows {
		k := m.kelasByID(a.KelasID)
		switch {
		case f.SiswaID > 0 && a.SiswaID != f.SiswaID,
			f.KelasID > 0 && a.KelasID != f.KelasID,
			!f.From.IsZero() && a.Tanggal.Before(f.From),
			!f.To.IsZero() && a.Tanggal.After(f.To),
			f.Status != "" && !a.Status.Is(f.Status),
			f.ExcludeStatus != "" && a.Status.Is(f.ExcludeStatus),
			f.Tingkat > 0 && k.Tingkat != f.Tingkat,
			f.Jurusan != "" && !strings.EqualFold(k.Jurusan, f.Jurusan):
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Tanggal.Equal(b.Tanggal) {
			if f.NewestFirst {
				return a.Tanggal.After(b.Tanggal)
			}
			return a.Tanggal.Before(b.Tanggal)
		}
		if a.NamaKelas != b.NamaKelas {
			return a.NamaKelas < b.NamaKelas
		}
		return a.NamaSiswa < b.NamaSiswa
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return m.err }

// fakeRenderer records what it was asked to render.
type fakeRenderer struct {
	letters []domain.WarningLetter
	reports []domain.AlfaReport
	err     error
}

func (r *fakeRenderer) RenderWarningLetter(_ context.Context, l domain.WarningLetter) (*domain.RenderedDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.letters = append(r.letters, l)
	return &domain.RenderedDocument{
		Path: "/srv/output/surat.pdf", Name: "surat.pdf", SizeBytes: 2048,
		GeneratedAt: testNow, Kind: "surat_peringatan",
	}, nil
}

func (r *fakeRenderer) RenderAlfaReport(_ context.Context, rep domain.AlfaReport) (*domain.RenderedDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.reports = append(r.reports, rep)
	return &domain.RenderedDocument{
		Path: "/srv/output/laporan.pdf", Name: "laporan.pdf", SizeBytes: 1024,
		GeneratedAt: testNow, Kind: "laporan_alfa",
	}, nil
}

// testNow is Tuesday 10 March 2026, 08:30 in Pontianak.
var testNow = time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

const (
	schoolLat = 0.0617
	schoolLon = 111.4953
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// fixtureStore builds two classes and five students:
//
//	X RPL 1:  Budi Santoso (1), Siti Aminah (3)
//	XI TKJ 1: Budi Hartono (2), Rudi Hermawan (4), Yosef Kurniawan (5, no rows)
func fixtureStore() *memStore {
	m := &memStore{
		kelas: []domain.Kelas{
			{ID: 1, Nama: "X RPL 1", Tingkat: 10, Jurusan: "RPL", WaliKelas: "Dra. Maria Ulfa"},
			{ID: 2, Nama: "XI TKJ 1", Tingkat: 11, Jurusan: "TKJ", WaliKelas: "Hendra Wijaya"},
		},
		siswa: []domain.Siswa{
			{ID: 1, Nama: "Budi Santoso", NIS: "1001", Status: "aktif", NamaOrangTua: "Santoso", KelasID: 1, Kelas: "X RPL 1"},
			{ID: 2, Nama: "Budi Hartono", NIS: "1002", Status: "aktif", KelasID: 2, Kelas: "XI TKJ 1"},
			{ID: 3, Nama: "Siti Aminah", NIS: "1003", Status: "aktif", KelasID: 1, Kelas: "X RPL 1"},
			{ID: 4, Nama: "Rudi Hermawan", NIS: "1004", Status: "aktif", KelasID: 2, Kelas: "XI TKJ 1"},
			{ID: 5, Nama: "Yosef Kurniawan", NIS: "1005", Status: "aktif", KelasID: 2, Kelas: "XI TKJ 1"},
		},
	}
	add := func(siswaID int64, tanggal string, status domain.Status, waktu, metode string, jarak, lat *float64) {
		v := m.siswa[0]
		for _, s := range m.siswa {
			if s.ID == siswaID {
				v = s
			}
		}
		a := domain.Absensi{
			ID: int64(len(m.rows) + 1), SiswaID: v.ID, KelasID: v.KelasID,
			NamaSiswa: v.Nama, NIS: v.NIS, NamaKelas: v.Kelas,
			Tanggal: day(tanggal), Status: status, WaktuAbsen: waktu, Metode: metode, JarakMeter: jarak,
		}
		if lat != nil {
			a.Latitude, a.Longitude = lat, new(schoolLon)
		}
		m.rows = append(m.rows, a)
	}

	add(1, "2026-03-02", domain.StatusHadir, "06:55:00", "gps", new(20.0), nil)
	add(1, "2026-03-03", domain.StatusAlfa, "", "", nil, nil)
	add(1, "2026-03-04", domain.StatusSakit, "", "", nil, nil)
	add(1, "2026-03-05", domain.StatusHadir, "07:20:00", "qr_code", nil, nil)
	add(1, "2026-03-10", domain.StatusHadir, "06:45:00", "gps", nil, new(schoolLat+0.01))

	add(3, "2026-03-02", domain.StatusHadir, "06:40:00", "qr_code", nil, nil)
	add(3, "2026-03-03", domain.StatusHadir, "04:30:00", "manual", nil, nil)
	add(3, "2026-03-10", domain.StatusIzin, "", "", nil, nil)

	add(4, "2026-03-02", domain.StatusAlfa, "", "", nil, nil)
	add(4, "2026-03-03", domain.StatusAlfa, "", "", nil, nil)
	add(4, "2026-03-04", domain.StatusAlfa, "", "", nil, nil)
	add(4, "2026-03-05", domain.StatusHadir, "07:30:00", "face_recognition", nil, nil)
	add(4, "2026-03-10", domain.StatusAlfa, "", "", nil, nil)

	add(2, "2026-01-15", domain.StatusHadir, "", "", nil, nil)
	add(2, "2026-01-16", domain.StatusHadir, "", "", nil, nil)
	add(2, "2026-03-10", domain.Status("hadir"), "07:00:00", "gps", new(150.0), nil)
	return m
}

func newTestService(store domain.AttendanceStore, docs domain.DocumentRenderer) *Service {
	loc := time.FixedZone("WIB", 7*3600)
	svc := NewService(store, docs, Config{
		School:      domain.SchoolInfo{Nama: "SMK Negeri 1 Sintang", Kota: "Sintang"},
		Latitude:    schoolLat,
		Longitude:   schoolLon,
		RadiusMeter: 100,
		Location:    loc,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.SetClock(func() time.Time { return testNow })
	return svc
}
