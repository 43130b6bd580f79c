package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/dispute-resolution-api/config"
	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/databases/mocks"
	"github.com/linesmerrill/dispute-resolution-api/models"
)

func TestNewMessageDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	messageDB := databases.NewMessageDatabase(db)

	assert.NotEmpty(t, messageDB)
}

func TestMessageDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Message)
		(*arg).Content = "mocked-message"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	// Create new database with mocked Database interface
	messageDba := databases.NewMessageDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	message, err := messageDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, message)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct
	// result
	message, err = messageDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, "mocked-message", message.Content)
	assert.NoError(t, err)
}

func TestMessageDatabase_Find(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).
		On("All", context.Background(), mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Message)
		*arg = []models.Message{{Content: "mocked-message"}}
	})
	cursorHelper.(*mocks.CursorHelper).
		On("Close", context.Background()).
		Return(nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"error": false}).
		Return(cursorHelper, nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	messageDba := databases.NewMessageDatabase(dbHelper)

	messages, err := messageDba.Find(context.Background(), bson.M{"error": true})

	assert.Empty(t, messages)
	assert.EqualError(t, err, "mocked-error")

	messages, err = messageDba.Find(context.Background(), bson.M{"error": false})

	assert.Equal(t, []models.Message{{Content: "mocked-message"}}, messages)
	assert.NoError(t, err)
}

func TestMessageDatabase_UpdateOne(t *testing.T) {

	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"error": true}, mock.Anything).
		Return(errors.New("mocked-error"))

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"error": false}, mock.Anything).
		Return(nil)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "messages").Return(collectionHelper)

	messageDba := databases.NewMessageDatabase(dbHelper)

	err := messageDba.UpdateOne(context.Background(), bson.M{"error": true}, bson.M{"$set": bson.M{}})
	assert.EqualError(t, err, "mocked-error")

	err = messageDba.UpdateOne(context.Background(), bson.M{"error": false}, bson.M{"$set": bson.M{}})
	assert.NoError(t, err)
}
