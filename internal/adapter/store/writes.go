package store

import (
	"context"
	"fmt"

	"absensi-ai/internal/domain"
)

// CreateKelas inserts a class and sets k.ID.
func (s *SQLStore) CreateKelas(ctx context.Context, k *domain.Kelas) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO kelas (nama, tingkat, jurusan, wali_kelas) VALUES (?, ?, ?, ?)",
		k.Nama, k.Tingkat, k.Jurusan, k.WaliKelas)
	if err != nil {
		return fmt.Errorf("insert kelas: %w", err)
	}
	k.ID, err = res.LastInsertId()
	return err
}

// CreateSiswa inserts a student and, when v.KelasID is set, an active
// class placement.
func (s *SQLStore) CreateSiswa(ctx context.Context, v *domain.Siswa) error {
	status := v.Status
	if status == "" {
		status = "aktif"
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO siswa (nama, nis, status, nama_orang_tua) VALUES (?, ?, ?, ?)",
		v.Nama, v.NIS, status, v.NamaOrangTua)
	if err != nil {
		return fmt.Errorf("insert siswa: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if v.KelasID == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO penempatan_kelas (siswa_id, kelas_id, status) VALUES (?, ?, 'aktif')",
		v.ID, v.KelasID); err != nil {
		return fmt.Errorf("insert penempatan: %w", err)
	}
	return nil
}

// DeleteSiswa soft-deletes a student.
func (s *SQLStore) DeleteSiswa(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE siswa SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	return err
}

// RecordAbsensi inserts one attendance row and sets a.ID.
func (s *SQLStore) RecordAbsensi(ctx context.Context, a *domain.Absensi) error {
	var waktu any
	if a.WaktuAbsen != "" {
		waktu = a.WaktuAbsen
	}
	var metode any
	if a.Metode != "" {
		metode = a.Metode
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO absensi (siswa_id, kelas_id, tanggal, status, waktu_absen, metode,
			latitude, longitude, jarak_meter, keterangan)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SiswaID, nullID(a.KelasID), a.Date(), string(a.Status), waktu, metode,
		a.Latitude, a.Longitude, a.JarakMeter, a.Keterangan)
	if err != nil {
		return fmt.Errorf("insert absensi: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
