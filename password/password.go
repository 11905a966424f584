// Package password implements MED's password processing and key derivation
// layer: turning a UTF-8 password into a 16-byte AES
// key, deriving the three password-validation fields stored in every
// universal header, and recovering level-1/level-2 key material from a
// level-3 recovery password.
//
// AES-128 and SHA-256 are used strictly as black boxes via crypto/aes and
// crypto/sha256; the security content is in how the derivation chain uses
// the primitives, not in the primitives themselves.
package password

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"unicode/utf8"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
)

// ValidationFields holds the three password-validation fields a universal
// header carries.
type ValidationFields struct {
	Level1 [format.PasswordValidationFieldSize]byte
	Level2 [format.PasswordValidationFieldSize]byte
	Level3 [format.PasswordValidationFieldSize]byte
}

// Data is the process-wide (or per-file) password cache: once a password
// has been validated against a file's ValidationFields, Data carries the
// derived AES-128 keys needed to decrypt that file's records, metadata,
// and CMP blocks.
type Data struct {
	AccessLevel format.AccessLevel
	Level1Key   [format.PasswordByteFieldSize]byte
	Level2Key   [format.PasswordByteFieldSize]byte
	Hint1       string
	Hint2       string
	Processed   bool

	level1Block cipher.Block
	level2Block cipher.Block
}

// pbytes reduces a UTF-8 password to its 16-byte key: the trailing byte of
// each code point's UTF-8 encoding, left-zero-padded to 16 bytes.
// Passwords must be 1..16 Unicode code points; anything else is an
// argument error, not an access failure.
func pbytes(pwd string) ([format.PasswordByteFieldSize]byte, error) {
	var out [format.PasswordByteFieldSize]byte

	if len(pwd) == 0 {
		return out, errs.ErrPasswordEmpty
	}

	n := utf8.RuneCountInString(pwd)
	if n == 0 {
		return out, errs.ErrPasswordEmpty
	}
	if n > format.PasswordByteFieldSize {
		return out, errs.ErrPasswordTooLong
	}

	offset := format.PasswordByteFieldSize - n
	i := 0
	for _, r := range pwd {
		var buf [utf8.UTFMax]byte
		w := utf8.EncodeRune(buf[:], r)
		out[offset+i] = buf[w-1]
		i++
	}

	return out, nil
}

func hash16(key [format.PasswordByteFieldSize]byte) [format.PasswordValidationFieldSize]byte {
	digest := sha256.Sum256(key[:])

	var out [format.PasswordValidationFieldSize]byte
	copy(out[:], digest[:format.PasswordValidationFieldSize])

	return out
}

func xor16(a, b [format.PasswordByteFieldSize]byte) [format.PasswordByteFieldSize]byte {
	var out [format.PasswordByteFieldSize]byte
	for i := range out {
		out[i] = a[i] ^ b[i]
	}

	return out
}

// Derive computes the validation fields and encryption keys for a freshly
// written file. l2 and l3 are optional ("" to omit); l3, when given, is a
// recovery password for the highest configured level (l2 if present, else
// l1).
func Derive(l1, l2, l3 string) (ValidationFields, *Data, error) {
	var fields ValidationFields

	l1b, err := pbytes(l1)
	if err != nil {
		return fields, nil, err
	}

	data := &Data{AccessLevel: format.AccessLevel1, Level1Key: l1b, Processed: true}
	fields.Level1 = hash16(l1b)

	lhi := l1b

	if l2 != "" {
		l2b, err := pbytes(l2)
		if err != nil {
			return fields, nil, err
		}

		fields.Level2 = xor16(hash16(l2b), l1b)
		data.Level2Key = l2b
		data.AccessLevel = format.AccessLevel2
		lhi = l2b
	}

	if l3 != "" {
		l3b, err := pbytes(l3)
		if err != nil {
			return fields, nil, err
		}

		fields.Level3 = xor16(hash16(l3b), lhi)
	}

	return fields, data, nil
}

// Unlock attempts to derive access from a single unspecified password: try
// it as the level-1 password first, then as the level-2 password.
func Unlock(p string, fields ValidationFields) (*Data, error) {
	pb, err := pbytes(p)
	if err != nil {
		return nil, err
	}

	if hash16(pb) == fields.Level1 {
		return &Data{AccessLevel: format.AccessLevel1, Level1Key: pb, Processed: true}, nil
	}

	putativeL1 := xor16(hash16(pb), fields.Level2)
	if hash16(putativeL1) == fields.Level1 {
		return &Data{
			AccessLevel: format.AccessLevel2,
			Level1Key:   putativeL1,
			Level2Key:   pb,
			Processed:   true,
		}, nil
	}

	return nil, errs.ErrInsufficientAccess
}

// Recover reverses the level-3 XOR chain, returning the level-1 key bytes
// (and level-2 key bytes, if hasLevel2) without ever persisting them. The
// caller already knows from the file's metadata whether a level-2 password
// was configured.
func Recover(l3 string, fields ValidationFields, hasLevel2 bool) (l1Bytes, l2Bytes [format.PasswordByteFieldSize]byte, err error) {
	pb3, err := pbytes(l3)
	if err != nil {
		return l1Bytes, l2Bytes, err
	}

	lhi := xor16(hash16(pb3), fields.Level3)

	if !hasLevel2 {
		l1Bytes = lhi
		return l1Bytes, l2Bytes, nil
	}

	l2Bytes = lhi
	l1Bytes = xor16(hash16(l2Bytes), fields.Level2)

	return l1Bytes, l2Bytes, nil
}

// block lazily schedules the AES-128 cipher for the requested level.
func (d *Data) block(level format.AccessLevel) (cipher.Block, error) {
	switch level {
	case format.AccessLevel1:
		if d.level1Block == nil {
			b, err := aes.NewCipher(d.Level1Key[:])
			if err != nil {
				return nil, err
			}
			d.level1Block = b
		}

		return d.level1Block, nil
	case format.AccessLevel2:
		if d.AccessLevel < format.AccessLevel2 {
			return nil, errs.ErrInsufficientAccess
		}
		if d.level2Block == nil {
			b, err := aes.NewCipher(d.Level2Key[:])
			if err != nil {
				return nil, err
			}
			d.level2Block = b
		}

		return d.level2Block, nil
	default:
		return nil, errs.ErrEncryptionLevelInvalid
	}
}

// EncryptInPlace ECB-encrypts data at the given level. data's length must
// be a whole multiple of the AES block size; the library never encrypts a
// partial tail.
func (d *Data) EncryptInPlace(level format.AccessLevel, data []byte) error {
	if len(data)%format.AESBlockSize != 0 {
		return errs.ErrBlockNotWholeAESBlocks
	}

	block, err := d.block(level)
	if err != nil {
		return err
	}

	for len(data) > 0 {
		block.Encrypt(data[:format.AESBlockSize], data[:format.AESBlockSize])
		data = data[format.AESBlockSize:]
	}

	return nil
}

// DecryptInPlace ECB-decrypts data at the given level.
func (d *Data) DecryptInPlace(level format.AccessLevel, data []byte) error {
	if len(data)%format.AESBlockSize != 0 {
		return errs.ErrBlockNotWholeAESBlocks
	}

	block, err := d.block(level)
	if err != nil {
		return err
	}

	for len(data) > 0 {
		block.Decrypt(data[:format.AESBlockSize], data[:format.AESBlockSize])
		data = data[format.AESBlockSize:]
	}

	return nil
}

// CanDecrypt reports whether d's access level satisfies level.
func (d *Data) CanDecrypt(level format.AccessLevel) bool {
	return d != nil && d.Processed && d.AccessLevel >= level
}
