package persist

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"

	"gitlab.com/NebulousLabs/errors"
)

// tempSuffix marks the temp file SaveJSON writes before renaming it over
// the main file; LoadJSON refuses to load a path carrying it (see
// persist/json_test.go's TestLoadJSONRejectsTempSuffix).
const tempSuffix = "_temp"

// Metadata identifies the schema a persisted JSON file claims to hold, so
// LoadJSON can reject a file written by an incompatible version.
type Metadata struct {
	Header  string
	Version string
}

// ErrBadFilenameSuffix is returned when LoadJSON is asked to load a path
// that is itself a temp file.
var ErrBadFilenameSuffix = errors.New("persist: cannot load a file with the temp suffix directly")

type jsonFile struct {
	Metadata Metadata
	Checksum string
	Data     json.RawMessage
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SaveJSON writes object to filename as checksummed JSON tagged with meta,
// via a temp file followed by an atomic rename, matching the teacher's
// crash-safe persist/json.go pattern (recovered here from its test file).
func SaveJSON(meta Metadata, object interface{}, filename string) error {
	data, err := json.MarshalIndent(object, "", "\t")
	if err != nil {
		return errors.Extend(err, errors.New("persist: failed to marshal object"))
	}
	jf := jsonFile{
		Metadata: meta,
		Checksum: checksum(data),
		Data:     data,
	}
	full, err := json.MarshalIndent(jf, "", "\t")
	if err != nil {
		return errors.Extend(err, errors.New("persist: failed to marshal envelope"))
	}

	tempName := filename + tempSuffix
	if err := ioutil.WriteFile(tempName, full, 0600); err != nil {
		return errors.Extend(err, errors.New("persist: failed to write temp file"))
	}
	return os.Rename(tempName, filename)
}

// LoadJSON reads filename, verifies its checksum and metadata against meta,
// and unmarshals its payload into object.
func LoadJSON(meta Metadata, object interface{}, filename string) error {
	if len(filename) >= len(tempSuffix) && filename[len(filename)-len(tempSuffix):] == tempSuffix {
		return ErrBadFilenameSuffix
	}

	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return errors.Extend(err, errors.New("persist: failed to read file"))
	}
	var jf jsonFile
	if err := json.Unmarshal(raw, &jf); err != nil {
		return errors.Extend(err, errors.New("persist: failed to unmarshal envelope"))
	}
	if jf.Metadata != meta {
		return errors.New("persist: metadata mismatch")
	}
	if checksum(jf.Data) != jf.Checksum {
		return errors.New("persist: checksum mismatch")
	}
	return json.Unmarshal(jf.Data, object)
}
