package soliscloud

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"time"
)

const (
	contentType = "application/json"
	dateLayout  = "Mon, 02 Jan 2006 15:04:05 GMT"
)

func contentMD5(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func passwordHash(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

func sign(keySecret, digest, date, resource string) string {
	mac := hmac.New(sha1.New, []byte(keySecret))
	mac.Write([]byte("POST\n" + digest + "\n" + contentType + "\n" + date + "\n" + resource))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signRequest sets the headers required by every API call.
func signRequest(req *http.Request, body []byte, keyId, keySecret, resource string, now time.Time) {
	digest := contentMD5(body)
	date := now.UTC().Format(dateLayout)
	req.Header.Set("Content-MD5", digest)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Date", date)
	req.Header.Set("Authorization", "API "+keyId+":"+sign(keySecret, digest, date, resource))
}
