// Package directory is the demo server's user list: a YAML file mapping login identifiers to
// subjects and Argon2id password hashes.
package directory

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Activate for an unknown subject.
var ErrNotFound = errors.New("user not found")

// User is one directory entry.
type User struct {
	Subject      string `yaml:"subject"`
	Identifier   string `yaml:"identifier"`
	PasswordHash string `yaml:"password_hash"`
	Active       bool   `yaml:"active"`
}

type document struct {
	Users []User `yaml:"users"`
}

// Directory is an in-memory index of users. Activation state changes live only in memory.
type Directory struct {
	mu           sync.RWMutex
	byIdentifier map[string]*User
	bySubject    map[string]*User
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	return Parse(data)
}

// Parse builds a Directory from YAML. Identifiers are matched case-insensitively; subjects
// and identifiers must be unique.
func Parse(data []byte) (*Directory, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}

	d := &Directory{
		byIdentifier: make(map[string]*User, len(doc.Users)),
		bySubject:    make(map[string]*User, len(doc.Users)),
	}
	for i := range doc.Users {
		u := doc.Users[i]
		u.Subject = strings.TrimSpace(u.Subject)
		key := normalize(u.Identifier)
		if u.Subject == "" || key == "" {
			return nil, fmt.Errorf("directory entry %d: subject and identifier are required", i)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("directory entry %q: password_hash is required", u.Subject)
		}
		if _, dup := d.bySubject[u.Subject]; dup {
			return nil, fmt.Errorf("directory entry %q: duplicate subject", u.Subject)
		}
		if _, dup := d.byIdentifier[key]; dup {
			return nil, fmt.Errorf("directory entry %q: duplicate identifier %q", u.Subject, u.Identifier)
		}
		d.bySubject[u.Subject] = &u
		d.byIdentifier[key] = &u
	}
	return d, nil
}

// Lookup returns a copy of the user registered under identifier.
func (d *Directory) Lookup(identifier string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byIdentifier[normalize(identifier)]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Activate marks subject active.
func (d *Directory) Activate(subject string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.bySubject[subject]
	if !ok {
		return ErrNotFound
	}
	u.Active = true
	return nil
}

// Len returns the number of users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.bySubject)
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
