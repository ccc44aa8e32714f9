package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/queue"
)

type remoteProducer struct{}

func (remoteProducer) Enqueue(context.Context, domain.QueueMessage) error { return nil }

func TestNotificationWarning(t *testing.T) {
	local := queue.NewLocalQueue(1, 1, nil)
	defer local.Close()

	assert.Equal(t, localQueueWarning, notificationWarning(local, false))
	assert.Empty(t, notificationWarning(local, true))
	assert.Empty(t, notificationWarning(remoteProducer{}, false))
}
