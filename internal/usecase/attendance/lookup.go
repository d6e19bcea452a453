package attendance

import (
	"context"
	"strings"

	"absensi-ai/internal/domain"
)

// SiswaItem is a student as returned by lookups.
type SiswaItem struct {
	ID     int64  `json:"id"`
	Nama   string `json:"nama"`
	NIS    string `json:"nis"`
	Status string `json:"status"`
	Kelas  string `json:"kelas"`
}

func siswaItems(list []domain.Siswa) []SiswaItem {
	out := make([]SiswaItem, 0, len(list))
	for _, v := range list {
		out = append(out, SiswaItem{ID: v.ID, Nama: v.Nama, NIS: v.NIS, Status: v.Status, Kelas: v.Kelas})
	}
	return out
}

// CariSiswaParams are the parameters of cari_siswa.
type CariSiswaParams struct {
	Nama string `json:"nama" jsonschema:"required,description=Nama siswa yang dicari (bisa sebagian nama)"`
}

// CariSiswa finds up to ten students whose name contains p.Nama.
func (s *Service) CariSiswa(ctx context.Context, p CariSiswaParams) ([]SiswaItem, error) {
	nama := strings.TrimSpace(p.Nama)
	if nama == "" {
		return nil, domain.Problemf("Parameter nama wajib diisi")
	}
	found, err := s.store.SearchSiswa(ctx, nama, maxSearchResults)
	if err != nil {
		return nil, err
	}
	return siswaItems(found), nil
}

// GetSiswaByKelas lists the students actively placed in a class.
func (s *Service) GetSiswaByKelas(ctx context.Context, p KelasRef) ([]SiswaItem, error) {
	k, err := s.resolveKelas(ctx, p)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListSiswaByKelas(ctx, k.ID)
	if err != nil {
		return nil, err
	}
	return siswaItems(list), nil
}

// AbsensiSiswaParams are the parameters of get_absensi_by_siswa.
type AbsensiSiswaParams struct {
	SiswaRef
	DateRange
}

// AbsensiItem is one attendance row.
type AbsensiItem struct {
	NamaSiswa  string `json:"nama_siswa"`
	NIS        string `json:"nis"`
	Kelas      string `json:"kelas,omitempty"`
	Tanggal    string `json:"tanggal,omitempty"`
	Status     string `json:"status"`
	WaktuAbsen string `json:"waktu_absen,omitempty"`
	Metode     string `json:"metode,omitempty"`
	Keterangan string `json:"keterangan,omitempty"`
}

// GetAbsensiBySiswa returns a student's attendance newest first, capped
// at fifty rows. The range applies only when both ends are given.
func (s *Service) GetAbsensiBySiswa(ctx context.Context, p AbsensiSiswaParams) ([]AbsensiItem, error) {
	v, err := s.resolveSiswa(ctx, p.SiswaRef)
	if err != nil {
		return nil, err
	}
	f := domain.AbsensiFilter{SiswaID: v.ID, NewestFirst: true, Limit: maxAbsensiBySiswa}
	if p.TanggalMulai != "" && p.TanggalAkhir != "" {
		if f.From, err = parseDate("tanggal_mulai", p.TanggalMulai); err != nil {
			return nil, err
		}
		if f.To, err = parseDate("tanggal_akhir", p.TanggalAkhir); err != nil {
			return nil, err
		}
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]AbsensiItem, 0, len(rows))
	for _, a := range rows {
		out = append(out, AbsensiItem{
			NamaSiswa:  a.NamaSiswa,
			NIS:        a.NIS,
			Kelas:      a.NamaKelas,
			Tanggal:    a.Date(),
			Status:     string(a.Status),
			WaktuAbsen: a.WaktuAbsen,
			Metode:     a.Metode,
			Keterangan: a.Keterangan,
		})
	}
	return out, nil
}

// AbsensiKelasParams are the parameters of get_absensi_by_kelas.
type AbsensiKelasParams struct {
	KelasRef
	Tanggal string `json:"tanggal,omitempty" jsonschema:"description=Tanggal absensi dalam format YYYY-MM-DD. Default: hari ini"`
}

// GetAbsensiByKelas returns one day of attendance for a class.
func (s *Service) GetAbsensiByKelas(ctx context.Context, p AbsensiKelasParams) ([]AbsensiItem, error) {
	k, err := s.resolveKelas(ctx, p.KelasRef)
	if err != nil {
		return nil, err
	}
	day, err := s.dayOrToday(p.Tanggal)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAbsensi(ctx, domain.AbsensiFilter{KelasID: k.ID, From: day, To: day})
	if err != nil {
		return nil, err
	}
	out := make([]AbsensiItem, 0, len(rows))
	for _, a := range rows {
		out = append(out, AbsensiItem{
			NamaSiswa:  a.NamaSiswa,
			NIS:        a.NIS,
			Status:     string(a.Status),
			WaktuAbsen: a.WaktuAbsen,
			Keterangan: a.Keterangan,
		})
	}
	return out, nil
}

// TidakHadirParams are the parameters of get_siswa_tidak_hadir.
type TidakHadirParams struct {
	Tanggal string `json:"tanggal,omitempty" jsonschema:"description=Tanggal dalam format YYYY-MM-DD. Default: hari ini"`
	Status  string `json:"status,omitempty" jsonschema:"enum=alfa,enum=sakit,enum=izin,description=Filter berdasarkan status ketidakhadiran (opsional)"`
}

// GetSiswaTidakHadir lists every non-hadir row on a day, ordered by class
// then name.
func (s *Service) GetSiswaTidakHadir(ctx context.Context, p TidakHadirParams) ([]AbsensiItem, error) {
	day, err := s.dayOrToday(p.Tanggal)
	if err != nil {
		return nil, err
	}
	f := domain.AbsensiFilter{From: day, To: day, ExcludeStatus: domain.StatusHadir}
	if p.Status != "" {
		st, ok := domain.ParseStatus(p.Status)
		if !ok || st.Is(domain.StatusHadir) {
			return nil, domain.Problemf("Status '%s' tidak valid. Gunakan alfa, sakit, atau izin", p.Status)
		}
		f.Status = st
	}
	rows, err := s.store.ListAbsensi(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]AbsensiItem, 0, len(rows))
	for _, a := range rows {
		out = append(out, AbsensiItem{
			NamaSiswa:  a.NamaSiswa,
			NIS:        a.NIS,
			Kelas:      a.NamaKelas,
			Status:     string(a.Status),
			Keterangan: a.Keterangan,
		})
	}
	return out, nil
}
