package mediahttp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// signExport подписывает пару (dc, id) общим секретом кластера.
func signExport(secret []byte, dc int, id int64) []byte {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(dc))
	binary.BigEndian.PutUint64(buf[4:], uint64(id))

	mac := hmac.New(sha256.New, secret)
	mac.Write(buf[:])
	return mac.Sum(nil)
}

func verifyExport(secret []byte, dc int, id int64, sig []byte) bool {
	return hmac.Equal(signExport(secret, dc, id), sig)
}
