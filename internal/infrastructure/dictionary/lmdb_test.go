package dictionary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/PowerDNS/lmdb-go/lmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	apperrors "github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// writeFixture creates every category environment under root, seeding the
// categories present in seed.  The layout mirrors what the ETL produces.
func writeFixture(t *testing.T, root string, seed map[annotation.EntityType]map[string][]annotation.EntityRecord) {
	t.Helper()
	for _, category := range annotation.DictionaryTypes {
		loc := lmdbLocation[category]
		dir := filepath.Join(root, loc.subdir)
		require.NoError(t, os.MkdirAll(dir, 0o755))

		env, err := lmdb.NewEnv()
		require.NoError(t, err)
		require.NoError(t, env.SetMaxDBs(1))
		require.NoError(t, env.Open(dir, 0, 0o644))

		err = env.Update(func(txn *lmdb.Txn) error {
			dbi, err := txn.OpenDBI(loc.dbName, lmdb.DupSort|lmdb.Create)
			if err != nil {
				return err
			}
			for key, recs := range seed[category] {
				for _, rec := range recs {
					raw, err := json.Marshal(rec)
					if err != nil {
						return err
					}
					if err := txn.Put(dbi, []byte(key), raw, 0); err != nil {
						return err
					}
				}
			}
			return nil
		})
		env.Close()
		require.NoError(t, err)
	}
}

func geneRecord(id, name, synonym, taxID string) annotation.EntityRecord {
	return annotation.EntityRecord{
		EntityID: id,
		IDType:   annotation.DatabaseNCBIGene,
		Name:     name,
		Synonym:  synonym,
		TaxID:    taxID,
	}
}

func TestOpenLMDBLookup(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, map[annotation.EntityType]map[string][]annotation.EntityRecord{
		annotation.TypeGene: {
			"gyra": {
				geneRecord("945776", "gyrA", "gyrA", "562"),
				geneRecord("2882815", "gyrA", "gyrA", "1423"),
			},
		},
	})

	store, err := OpenLMDB(root, logging.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.Lookup(annotation.TypeGene, "gyra")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	ids := []string{recs[0].EntityID, recs[1].EntityID}
	assert.ElementsMatch(t, []string{"945776", "2882815"}, ids)

	// A missing key is not an error.
	recs, err = store.Lookup(annotation.TypeGene, "nosuchgene")
	require.NoError(t, err)
	assert.Empty(t, recs)

	found, err := store.Contains(annotation.TypeGene, "gyra")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Contains(annotation.TypeChemical, "gyra")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOpenLMDBCategories(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, nil)

	store, err := OpenLMDB(root, logging.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, annotation.DictionaryTypes, store.Categories())
}

func TestOpenLMDBMissingEnvironmentFails(t *testing.T) {
	// An empty root has no category environments; the open must fail as a
	// whole rather than serving a partial dictionary.
	_, err := OpenLMDB(t.TempDir(), logging.NewNopLogger())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeDictionaryOpenFailed, appErr.Code)
}

func TestLMDBStoreClosed(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, nil)

	store, err := OpenLMDB(root, logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Lookup(annotation.TypeGene, "gyra")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeDictionaryClosed, appErr.Code)
}
