package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/weather"
)

func TestKafkaPublisherSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var m Message
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		if m.Kind != "zip" || m.Query != "90210" || !m.Found || !m.At.Equal(at) {
			return errors.New("unexpected message: " + string(val))
		}
		if m.ID == "" {
			return errors.New("missing event id")
		}
		return nil
	})

	pub := NewKafkaPublisher(producer, "weather.searches")
	err := pub.PublishSearch(context.Background(), weather.SearchEvent{
		Search: weather.Search{Kind: weather.KindZipCode, Query: "90210", Timestamp: at},
		Found:  true,
		At:     at,
	})
	require.NoError(t, err)
}

func TestKafkaPublisherWrapsSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisher(producer, "weather.searches")
	err := pub.PublishSearch(context.Background(), weather.SearchEvent{
		Search: weather.Search{Kind: weather.KindText, Query: "Paris"},
		At:     time.Now(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestKafkaPublisherHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := NewKafkaPublisher(producer, "weather.searches")
	err := pub.PublishSearch(ctx, weather.SearchEvent{Search: weather.Search{Kind: weather.KindText, Query: "Paris"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMessageCarriesCoordinates(t *testing.T) {
	s := weather.NewCoordinateSearch(weather.Coordinates{Lat: 1.5, Lon: -2.25}, time.Now())
	m := NewMessage(weather.SearchEvent{Search: s, At: s.Timestamp})

	require.NotNil(t, m.Lat)
	require.NotNil(t, m.Lon)
	assert.Equal(t, 1.5, *m.Lat)
	assert.Equal(t, -2.25, *m.Lon)
	assert.Equal(t, "latlon", m.Kind)
	assert.Empty(t, m.Query)

	other := NewMessage(weather.SearchEvent{Search: s})
	assert.NotEqual(t, m.ID, other.ID)
}
