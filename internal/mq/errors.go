package mq

import "errors"

// Ошибки брокера.
var (
	// ErrBrokerUnavailable — соединение с брокером отсутствует.
	// Публикация падает сразу, без ожидания reconnect: вызывающий
	// обязан считать ошибку транзиентной (задача возвращается в движок
	// через fail, а не завершается).
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrPublishNacked — брокер отверг сообщение (nack в confirm-режиме).
	ErrPublishNacked = errors.New("publish nacked by broker")
)
