package middleware

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/cipher"
)

// EncryptedHeader marks whether the response body was sealed. It is set
// explicitly either way on authenticated routes: a missing seal must be a
// visible decision, never a silent omission.
const EncryptedHeader = "X-Encrypted"

// bodies past this size get the gzip pre-pass before sealing
const compressThreshold = 1 << 10

// EncryptResponse seals successful response bodies under the caller's own
// bearer token. Decryption therefore requires possession of the exact
// credential that made the request: a logged or cached response body is
// useless to anyone else. Error responses pass through unsealed so the
// problem format stays readable.
func EncryptResponse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bw := &bufferedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(bw, r)

		auth, ok := AuthFromContext(r.Context())
		secret := ""
		if ok {
			secret = auth.RawToken
		}

		if secret == "" || bw.statusCode >= 400 || bw.body.Len() == 0 {
			// no readable token (or nothing worth sealing): flag and pass through
			w.Header().Set(EncryptedHeader, "false")
			bw.flushPlain()
			return
		}

		blob, err := cipher.Seal(bw.body.Bytes(), secret, bw.body.Len() > compressThreshold)
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("response encryption failed")
			w.Header().Set(EncryptedHeader, "false")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set(EncryptedHeader, "true")
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
		w.WriteHeader(bw.statusCode)
		_, _ = w.Write([]byte(blob))
	})
}

// bufferedWriter holds the handler's output so the wrapper can decide
// afterwards whether to seal it.
type bufferedWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) flushPlain() {
	w.ResponseWriter.WriteHeader(w.statusCode)
	_, _ = w.ResponseWriter.Write(w.body.Bytes())
}
