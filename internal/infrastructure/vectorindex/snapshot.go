package vectorindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
)

// 快照格式（小端）：
//   <path>      magic "MSVX" | version u32 | dim u32 | count u64 | count*dim float32
//   <path>.ids  magic "MSID" | version u32 | count u64 | count int64
const (
	snapshotVersion = 1
	idsSuffix       = ".ids"

	vectorHeaderSize = 4 + 4 + 4 + 8
	idsHeaderSize    = 4 + 4 + 8
)

var (
	vectorMagic = [4]byte{'M', 'S', 'V', 'X'}
	idsMagic    = [4]byte{'M', 'S', 'I', 'D'}
)

// IDsPath 返回 ID 映射文件路径
func IDsPath(path string) string {
	return path + idsSuffix
}

// Save 持久化向量与 ID 映射，持有写锁
func (f *Flat) Save(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	count := uint64(len(f.ids))
	err := writeAtomic(path, func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, vectorMagic); err != nil {
			return err
		}
		header := []any{uint32(snapshotVersion), uint32(f.dim), count}
		for _, h := range header {
			if err := binary.Write(w, binary.LittleEndian, h); err != nil {
				return err
			}
		}
		return binary.Write(w, binary.LittleEndian, f.vectors)
	})
	if err != nil {
		return fmt.Errorf("failed to write vectors: %w", err)
	}

	err = writeAtomic(IDsPath(path), func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, idsMagic); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(snapshotVersion)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, count); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, f.ids)
	})
	if err != nil {
		return fmt.Errorf("failed to write id map: %w", err)
	}
	return nil
}

// LoadFlat 从快照装载索引
// 向量文件不存在时返回维度为 dim 的空索引；dim 为 0 时采用快照中的维度
func LoadFlat(path string, dim int) (*Flat, error) {
	vf, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewFlat(dim), nil
		}
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer vf.Close()

	r := bufio.NewReader(vf)
	var magic [4]byte
	var version, fileDim uint32
	var count uint64
	if err := readAll(r, &magic, &version, &fileDim, &count); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrIntegrity, err)
	}
	if magic != vectorMagic || version != snapshotVersion {
		return nil, fmt.Errorf("%w: unrecognized index file %s", ErrIntegrity, path)
	}
	if dim != 0 && int(fileDim) != dim {
		return nil, fmt.Errorf("%w: %w: snapshot dimension %d, expected %d", ErrIntegrity, ErrDimensionMismatch, fileDim, dim)
	}

	if fileDim == 0 && count > 0 {
		return nil, fmt.Errorf("%w: zero dimension with %d vectors", ErrIntegrity, count)
	}
	if err := checkPayload(vf, path, vectorHeaderSize, count, uint64(fileDim)*4); err != nil {
		return nil, err
	}

	vectors := make([]float32, count*uint64(fileDim))
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return nil, fmt.Errorf("%w: read vectors: %v", ErrIntegrity, err)
	}

	ids, err := loadIDs(IDsPath(path))
	if err != nil {
		return nil, err
	}
	if uint64(len(ids)) != count {
		return nil, fmt.Errorf("%w: %d vectors but %d ids", ErrIntegrity, count, len(ids))
	}

	return &Flat{dim: int(fileDim), vectors: vectors, ids: ids}, nil
}

func loadIDs(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: id map %s missing", ErrIntegrity, path)
		}
		return nil, fmt.Errorf("failed to open id map: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	var version uint32
	var count uint64
	if err := readAll(r, &magic, &version, &count); err != nil {
		return nil, fmt.Errorf("%w: read id header: %v", ErrIntegrity, err)
	}
	if magic != idsMagic || version != snapshotVersion {
		return nil, fmt.Errorf("%w: unrecognized id map %s", ErrIntegrity, path)
	}

	if err := checkPayload(f, path, idsHeaderSize, count, 8); err != nil {
		return nil, err
	}

	ids := make([]int64, count)
	if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
		return nil, fmt.Errorf("%w: read ids: %v", ErrIntegrity, err)
	}
	return ids, nil
}

// checkPayload 分配前按文件大小校验头部声明的条目数
func checkPayload(f *os.File, path string, header, count, elemSize uint64) error {
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	hi, payload := bits.Mul64(count, elemSize)
	if hi != 0 || payload > math.MaxInt64-header {
		return fmt.Errorf("%w: %s declares %d entries, size overflows", ErrIntegrity, path, count)
	}
	if want := header + payload; uint64(st.Size()) != want {
		return fmt.Errorf("%w: %s is %d bytes, header declares %d", ErrIntegrity, path, st.Size(), want)
	}
	return nil
}

func readAll(r io.Reader, dst ...any) error {
	for _, d := range dst {
		if err := binary.Read(r, binary.LittleEndian, d); err != nil {
			return err
		}
	}
	return nil
}

// writeAtomic 写入临时文件后重命名
func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
