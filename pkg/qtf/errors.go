package qtf

import "errors"

var (
	ErrInvalidMagic     = errors.New("invalid QTF magic")
	ErrUnsupportedMajor = errors.New("unsupported QTF major version")
	ErrCorruptFile      = errors.New("corrupt QTF file")
	ErrNotFound         = errors.New("qtf: tensor not found")
	ErrDuplicateName    = errors.New("qtf: duplicate tensor name")
)
