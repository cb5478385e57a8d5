package notify

import (
	"fmt"
	"time"

	"github.com/HuellitasApp/HuellitasGo/pkg/logger"
	"github.com/HuellitasApp/HuellitasGo/pkg/mqtt"
)

// MQTTNotifier republishes notices on the MQTT broker so companion
// services (reminders, the mobile push bridge) can react to them.
type MQTTNotifier struct {
	comm  *mqtt.MqttCommunicator
	topic string
}

// NewMQTTNotifier creates a notifier publishing on the given topic
func NewMQTTNotifier(comm *mqtt.MqttCommunicator, topic string) *MQTTNotifier {
	return &MQTTNotifier{comm: comm, topic: topic}
}

func (n *MQTTNotifier) publish(level Level, message string) {
	if n.comm == nil || !n.comm.IsConnected() {
		return
	}

	notice := Notice{Level: level, Message: message, Timestamp: time.Now()}
	if err := n.comm.Publish(n.topic, notice); err != nil {
		logger.Warn(fmt.Sprintf("No se pudo publicar la notificación: %v", err), "Notify")
	}
}

// Success publishes a success notice
func (n *MQTTNotifier) Success(message string) { n.publish(LevelSuccess, message) }

// Error publishes an error notice
func (n *MQTTNotifier) Error(message string) { n.publish(LevelError, message) }

// Info publishes an informational notice
func (n *MQTTNotifier) Info(message string) { n.publish(LevelInfo, message) }
