package vertex

import (
	"encoding/json"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/xerrors"

	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// ExperimentStore is the local durable registry of experiments: deployed-job
// maps and last-known statuses, keyed by experiment name. It lets the CLI
// inspect past runs without the API process running.
type ExperimentStore struct {
	db *leveldb.DB
}

func OpenOrInitStore(p string) (*ExperimentStore, error) {
	_, err := os.Stat(p)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		} else {
			if err := os.MkdirAll(p, 0700); err != nil {
				return nil, err
			}
		}
	}

	db, err := leveldb.OpenFile(p, nil)
	if err != nil {
		return nil, err
	}

	return &ExperimentStore{db}, nil
}

// List lists the names of every stored experiment.
func (s *ExperimentStore) List() ([]string, error) {
	var names []string
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		names = append(names, string(iter.Key()))
	}
	iter.Release()
	return names, nil
}

func (s *ExperimentStore) Get(name string) (models.ExperimentRecord, error) {
	value, err := s.db.Get([]byte(name), nil)
	if err != nil {
		return models.ExperimentRecord{}, xerrors.Errorf("reading experiment '%s': %w", name, err)
	}
	var record models.ExperimentRecord
	if err = json.Unmarshal(value, &record); err != nil {
		return models.ExperimentRecord{}, xerrors.Errorf("decoding experiment '%s': %w", name, err)
	}
	return record, nil
}

func (s *ExperimentStore) Put(name string, record models.ExperimentRecord) error {
	bytes, err := json.Marshal(record)
	if err != nil {
		return xerrors.Errorf("encoding experiment '%s': %w", name, err)
	}
	if err := s.db.Put([]byte(name), bytes, nil); err != nil {
		return xerrors.Errorf("writing experiment '%s': %w", name, err)
	}
	return nil
}

func (s *ExperimentStore) Delete(name string) error {
	if err := s.db.Delete([]byte(name), nil); err != nil {
		return xerrors.Errorf("deleting experiment '%s': %w", name, err)
	}
	return nil
}

func (s *ExperimentStore) Close() error {
	return s.db.Close()
}
