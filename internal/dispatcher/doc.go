// Package dispatcher — координирующий цикл моста движок → брокер.
//
// # Обзор
//
// Dispatcher повторяет один логический цикл до сигнала остановки:
//
//  1. fetchAndLock у движка по настроенным topic'ам
//  2. Маршрутизация каждой задачи таблицей (exact → prefix → default)
//  3. Health gate: система в состоянии error — немедленный fail
//     с коротким retry вместо публикации
//  4. Публикация сообщения в брокер с publisher confirms
//  5. Успех публикации → complete (fire-and-forget: доставка до
//     системы — ответственность consumer'а)
//  6. Ошибка публикации → fail с ограниченным числом retry и
//     экспоненциальным retryTimeout; исчерпание retry — терминальный
//     инцидент для оператора
//
// # Lease
//
// Каждая задача в обработке сопровождается записью в leaseTable.
// Фоновая горутина продлевает lock на 2/3 его срока; неудачное
// продление бросает задачу — обработка отменяется, отчёты подавляются.
// Инварианты:
//
//   - задача отчитывается не более одного раза (complete XOR fail)
//   - отчёт никогда не отправляется после локального истечения lease
//
// # Ошибки
//
//   - EngineUnavailable — транзиентно: fetch повторяется с backoff
//     и jitter, захваченные задачи не бросаются
//   - BrokerUnavailable — транзиентно: задача возвращается движку
//     через fail, не теряется
//   - LockExpired — фатально для операции над задачей: бросить,
//     движок уже распоряжается задачей сам
//
// Ни одна ошибка не решается молчаливой потерей задачи: каждая задача
// приходит к complete, терминальному инциденту или явному abandon
// из-за потери lease.
package dispatcher
