package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	ierrors "github.com/matzehuels/ghdisco/pkg/errors"
)

// DefaultEnvPrefix names numbered token variables: GITHUB_TOKEN_1, GITHUB_TOKEN_2, ...
const DefaultEnvPrefix = "GITHUB_TOKEN_"

// LoadOptions controls where [Load] looks for tokens.
type LoadOptions struct {
	EnvPrefix string // numbered variables; defaults to DefaultEnvPrefix
	EnvFile   string // optional .env file read with godotenv; missing file is ignored
	File      string // optional file with one token per line
	Tokens    []string

	// Environ overrides os.Environ, for tests.
	Environ func() []string
}

// Load collects tokens from explicit values, the process environment, an
// optional .env file and an optional token file, in that order. Process
// variables win over .env entries of the same name.
func Load(opts LoadOptions) (*Pool, error) {
	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}

	var creds []Credential
	for i, tok := range opts.Tokens {
		creds = append(creds, Credential{Name: fmt.Sprintf("flag#%d", i+1), Token: strings.TrimSpace(tok)})
	}

	vars := make(map[string]string)
	if opts.EnvFile != "" {
		fileVars, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", opts.EnvFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	creds = append(creds, fromVars(vars, prefix)...)

	if opts.File != "" {
		fromFile, err := readTokenFile(opts.File)
		if err != nil {
			return nil, err
		}
		creds = append(creds, fromFile...)
	}

	for _, c := range creds {
		if err := ierrors.ValidateToken(c.Token); err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
	}

	pool, err := NewPool(creds)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeNoCredentials, err,
			"set %s1..N or GITHUB_TOKEN, or pass --token", prefix)
	}
	return pool, nil
}

// fromVars returns prefix-numbered variables in numeric order followed by
// the bare GITHUB_TOKEN.
func fromVars(vars map[string]string, prefix string) []Credential {
	type numbered struct {
		name string
		n    int
	}
	var keys []numbered
	for k := range vars {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		// GITHUB_TOKEN_SCOPES and friends are not credentials.
		n, err := strconv.Atoi(strings.TrimPrefix(k, prefix))
		if err != nil || n < 0 {
			continue
		}
		keys = append(keys, numbered{k, n})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].n != keys[j].n {
			return keys[i].n < keys[j].n
		}
		return keys[i].name < keys[j].name
	})

	var creds []Credential
	for _, k := range keys {
		if v := strings.TrimSpace(vars[k.name]); v != "" {
			creds = append(creds, Credential{Name: k.name, Token: v})
		}
	}
	if v := strings.TrimSpace(vars["GITHUB_TOKEN"]); v != "" {
		creds = append(creds, Credential{Name: "GITHUB_TOKEN", Token: v})
	}
	return creds
}

func readTokenFile(path string) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrCodeFileNotFound, err, "open token file")
	}
	defer f.Close()

	var creds []Credential
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		tok := strings.TrimSpace(sc.Text())
		if tok == "" || strings.HasPrefix(tok, "#") {
			continue
		}
		creds = append(creds, Credential{Name: fmt.Sprintf("%s:%d", path, line), Token: tok})
	}
	return creds, sc.Err()
}
