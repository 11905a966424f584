package password

import (
	"testing"

	"github.com/MEDFormat/MEDC-sub001/errs"
	"github.com/MEDFormat/MEDC-sub001/format"
	"github.com/stretchr/testify/require"
)

func TestDerive_EmptyPasswordRejected(t *testing.T) {
	_, _, err := Derive("", "", "")
	require.ErrorIs(t, err, errs.ErrPasswordEmpty)
}

func TestDerive_TooLongPasswordRejected(t *testing.T) {
	_, _, err := Derive("0123456789abcdefg", "", "")
	require.ErrorIs(t, err, errs.ErrPasswordTooLong)
}

func TestUnlock_Level1Only(t *testing.T) {
	fields, writer, err := Derive("secret1", "", "")
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel1, writer.AccessLevel)

	reader, err := Unlock("secret1", fields)
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel1, reader.AccessLevel)
	require.Equal(t, writer.Level1Key, reader.Level1Key)
}

func TestUnlock_Level2FallsBackToLevel1Key(t *testing.T) {
	fields, writer, err := Derive("secret1", "secret2", "")
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel2, writer.AccessLevel)

	readerL2, err := Unlock("secret2", fields)
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel2, readerL2.AccessLevel)
	require.Equal(t, writer.Level1Key, readerL2.Level1Key)
	require.Equal(t, writer.Level2Key, readerL2.Level2Key)

	readerL1, err := Unlock("secret1", fields)
	require.NoError(t, err)
	require.Equal(t, format.AccessLevel1, readerL1.AccessLevel)
	require.Equal(t, writer.Level1Key, readerL1.Level1Key)
}

func TestUnlock_WrongPasswordFails(t *testing.T) {
	fields, _, err := Derive("secret1", "secret2", "")
	require.NoError(t, err)

	_, err = Unlock("wrong", fields)
	require.ErrorIs(t, err, errs.ErrInsufficientAccess)
}

func TestRecover_Level3WithoutLevel2(t *testing.T) {
	fields, writer, err := Derive("secret1", "", "recoveryphrase")
	require.NoError(t, err)

	l1, _, err := Recover("recoveryphrase", fields, false)
	require.NoError(t, err)
	require.Equal(t, writer.Level1Key, l1)
}

func TestRecover_Level3WithLevel2(t *testing.T) {
	fields, writer, err := Derive("secret1", "secret2", "recoveryphrase")
	require.NoError(t, err)

	l1, l2, err := Recover("recoveryphrase", fields, true)
	require.NoError(t, err)
	require.Equal(t, writer.Level1Key, l1)
	require.Equal(t, writer.Level2Key, l2)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	_, data, err := Derive("secret1", "secret2", "")
	require.NoError(t, err)

	plain := []byte("0123456789ABCDEF0123456789ABCDEF") // 32 bytes -> two AES blocks
	aligned := plain[:32]
	buf := append([]byte{}, aligned...)

	require.NoError(t, data.EncryptInPlace(format.AccessLevel2, buf))
	require.NotEqual(t, aligned, buf)

	require.NoError(t, data.DecryptInPlace(format.AccessLevel2, buf))
	require.Equal(t, aligned, buf)
}

func TestEncryptInPlace_RejectsPartialBlock(t *testing.T) {
	_, data, err := Derive("secret1", "", "")
	require.NoError(t, err)

	err = data.EncryptInPlace(format.AccessLevel1, make([]byte, 17))
	require.ErrorIs(t, err, errs.ErrBlockNotWholeAESBlocks)
}

func TestCanDecrypt(t *testing.T) {
	_, data, err := Derive("secret1", "", "")
	require.NoError(t, err)

	require.True(t, data.CanDecrypt(format.AccessLevel1))
	require.False(t, data.CanDecrypt(format.AccessLevel2))
}
