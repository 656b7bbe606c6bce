package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

type fakeCollection struct {
	docs []any
	err  error
}

func (f *fakeCollection) InsertOne(_ context.Context, document any, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, document)
	return &mongo.InsertOneResult{InsertedID: len(f.docs)}, nil
}

func TestStoreInsertsOneDocumentPerRecord(t *testing.T) {
	t.Parallel()

	coll := &fakeCollection{}
	sink, err := NewWithCollection(coll)
	require.NoError(t, err)
	assert.Equal(t, "mongo", sink.Name())

	rec := fara.Record{
		URL:              "https://efile.fara.gov/ords/f?p=171:200",
		ForeignPrincipal: "Tourism Australia",
		Exhibits:         []fara.Exhibit{{URL: "https://efile.fara.gov/docs/a.pdf", Date: "2012-05-23T00:00:00"}},
	}
	require.NoError(t, sink.Store(context.Background(), rec))
	require.NoError(t, sink.Store(context.Background(), rec))

	require.Len(t, coll.docs, 2)
	assert.Equal(t, rec, coll.docs[0])
	require.NoError(t, sink.Close(context.Background()))
}

func TestStoreWrapsInsertError(t *testing.T) {
	t.Parallel()

	boom := errors.New("not primary")
	sink, err := NewWithCollection(&fakeCollection{err: boom})
	require.NoError(t, err)

	err = sink.Store(context.Background(), fara.Record{URL: "u"})
	require.ErrorIs(t, err, boom)
}

func TestRecordDocumentKeys(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(fara.Record{
		URL:      "u",
		RegNum:   "6065",
		Exhibits: []fara.Exhibit{},
	})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	for _, key := range []string{
		"url", "foreign_principal", "fp_reg_date", "address", "state",
		"country", "registrant", "reg_num", "reg_date", "exhibits",
	} {
		assert.Contains(t, doc, key)
	}
	assert.Equal(t, "6065", doc["reg_num"])
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{URI: "postgres://not-mongo"})
	require.Error(t, err)

	_, err = NewWithCollection(nil)
	require.Error(t, err)
}
