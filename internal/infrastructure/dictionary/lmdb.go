package dictionary

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/PowerDNS/lmdb-go/lmdb"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	apperrors "github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// lmdbLocation maps an entity category to its environment subdirectory and
// named database inside that environment.  The layout matches what the
// dictionary ETL produces.
var lmdbLocation = map[annotation.EntityType]struct {
	subdir string
	dbName string
}{
	annotation.TypeAnatomy:   {"anatomy", "anatomy_lmdb"},
	annotation.TypeChemical:  {"chemicals", "chemicals_lmdb"},
	annotation.TypeCompound:  {"compounds", "compounds_lmdb"},
	annotation.TypeDisease:   {"diseases", "diseases_lmdb"},
	annotation.TypeFood:      {"foods", "foods_lmdb"},
	annotation.TypeGene:      {"genes", "genes_lmdb"},
	annotation.TypePhenomena: {"phenomenas", "phenomenas_lmdb"},
	annotation.TypePhenotype: {"phenotypes", "phenotypes_lmdb"},
	annotation.TypeProtein:   {"proteins", "proteins_lmdb"},
	annotation.TypeSpecies:   {"species", "species_lmdb"},
}

type lmdbEnv struct {
	env *lmdb.Env
	dbi lmdb.DBI
}

// LMDBStore serves dictionary lookups from per-category LMDB environments.
// Every environment is opened read-only at construction; a single missing or
// corrupt environment fails the whole open, so a running service is known to
// have all categories available.
type LMDBStore struct {
	log  logging.Logger
	envs map[annotation.EntityType]lmdbEnv

	mu     sync.RWMutex
	closed bool
}

// OpenLMDB opens every category environment under root.  Records are stored
// under dupsort keys, one JSON document per synonym row.
func OpenLMDB(root string, log logging.Logger) (*LMDBStore, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &LMDBStore{
		log:  log.Named("dictionary"),
		envs: make(map[annotation.EntityType]lmdbEnv, len(annotation.DictionaryTypes)),
	}

	for _, category := range annotation.DictionaryTypes {
		loc := lmdbLocation[category]
		path := filepath.Join(root, loc.subdir)

		env, err := openEnv(path, loc.dbName)
		if err != nil {
			s.Close()
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDictionaryOpenFailed,
				fmt.Sprintf("open %s dictionary at %s", category, path))
		}
		s.envs[category] = env
		s.log.Debug("dictionary environment opened",
			logging.String("category", string(category)),
			logging.String("path", path),
		)
	}

	s.log.Info("dictionaries opened", logging.Int("categories", len(s.envs)))
	return s, nil
}

func openEnv(path, dbName string) (lmdbEnv, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return lmdbEnv{}, err
	}
	if err := env.SetMaxDBs(1); err != nil {
		env.Close()
		return lmdbEnv{}, err
	}
	if err := env.Open(path, lmdb.Readonly|lmdb.NoReadahead, 0o644); err != nil {
		env.Close()
		return lmdbEnv{}, err
	}

	var dbi lmdb.DBI
	err = env.View(func(txn *lmdb.Txn) error {
		var err error
		dbi, err = txn.OpenDBI(dbName, lmdb.DupSort)
		return err
	})
	if err != nil {
		env.Close()
		return lmdbEnv{}, err
	}
	return lmdbEnv{env: env, dbi: dbi}, nil
}

// Lookup returns every record stored under the normalized key.  A missing key
// is not an error.
func (s *LMDBStore) Lookup(category annotation.EntityType, normalizedKey string) ([]annotation.EntityRecord, error) {
	e, err := s.category(category)
	if err != nil {
		return nil, err
	}

	var records []annotation.EntityRecord
	err = e.env.View(func(txn *lmdb.Txn) error {
		txn.RawRead = true

		cur, err := txn.OpenCursor(e.dbi)
		if err != nil {
			return err
		}
		defer cur.Close()

		_, v, err := cur.Get([]byte(normalizedKey), nil, lmdb.SetKey)
		if lmdb.IsNotFound(err) {
			return nil
		}
		for err == nil {
			var rec annotation.EntityRecord
			if uerr := json.Unmarshal(v, &rec); uerr != nil {
				return apperrors.Wrap(uerr, apperrors.ErrCodeDictionaryDecodeFailed,
					fmt.Sprintf("decode %s record for %q", category, normalizedKey))
			}
			records = append(records, rec)
			_, v, err = cur.Get(nil, nil, lmdb.NextDup)
		}
		if lmdb.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError,
			fmt.Sprintf("lookup %q in %s dictionary", normalizedKey, category))
	}
	return records, nil
}

// Contains reports key presence without decoding record payloads.
func (s *LMDBStore) Contains(category annotation.EntityType, normalizedKey string) (bool, error) {
	e, err := s.category(category)
	if err != nil {
		return false, err
	}

	found := false
	err = e.env.View(func(txn *lmdb.Txn) error {
		txn.RawRead = true
		_, err := txn.Get(e.dbi, []byte(normalizedKey))
		if lmdb.IsNotFound(err) {
			return nil
		}
		if err == nil {
			found = true
		}
		return err
	})
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError,
			fmt.Sprintf("check %q in %s dictionary", normalizedKey, category))
	}
	return found, nil
}

// Categories lists the categories opened by this store in match order.
func (s *LMDBStore) Categories() []annotation.EntityType {
	out := make([]annotation.EntityType, 0, len(s.envs))
	for _, category := range annotation.DictionaryTypes {
		if _, ok := s.envs[category]; ok {
			out = append(out, category)
		}
	}
	return out
}

// Close shuts down every environment.  Safe to call more than once.
func (s *LMDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, e := range s.envs {
		e.env.Close()
	}
	return nil
}

func (s *LMDBStore) category(category annotation.EntityType) (lmdbEnv, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return lmdbEnv{}, apperrors.New(apperrors.ErrCodeDictionaryClosed, "dictionary store is closed")
	}
	e, ok := s.envs[category]
	if !ok {
		return lmdbEnv{}, apperrors.Newf(apperrors.ErrCodeDictionaryBadCategory,
			"no dictionary for category %q", category)
	}
	return e, nil
}

var _ Store = (*LMDBStore)(nil)
