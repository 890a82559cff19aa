package events

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsJSONToPrefixedTopic(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)

	event := BankRecordReconciledEvent{BankRecordID: uuid.New(), LedgerEntryID: uuid.New(), Fingerprint: "abc"}
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "tuition.bank_record.reconciled", msg.Topic)
		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var decoded BankRecordReconciledEvent
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, event, decoded)
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "tuition")
	pub.Publish(BankRecordReconciled, event)
	require.NoError(t, pub.Close())
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, nil, b}.Publish(ImportCompleted, "done")

	assert.Len(t, a.Of(ImportCompleted), 1)
	assert.Len(t, b.Of(ImportCompleted), 1)
	assert.Empty(t, a.Of(InstallmentSettled))
}
