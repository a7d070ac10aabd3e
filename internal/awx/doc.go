// Package awx — backend A: платформа выполнения workflow (Ansible AWX / Tower).
//
// Сервис "awx" регистрирует две команды:
//
//   - launch_workflow — POST /api/v2/workflow_job_templates/{id}/launch/
//     с extra_vars; возвращает id созданного workflow job
//   - get_job_status — GET /api/v2/workflow_jobs/{id}/
//
// Статусы job делятся на три фазы (см. Classify):
//
//	new, pending, waiting, running  → PhaseRunning
//	successful                      → PhaseSucceeded
//	failed, error, canceled         → PhaseFailed
//
// Неизвестный статус считается незавершённым: опрос повторится позже.
//
// Пустое имя инстанса разрешается через default_instance семейства.
package awx
