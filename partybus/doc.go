// Package partybus implements a Discord bot that coordinates staff
// training for a venue: which positions exist, who is qualified to
// train them, and which trainees still need a trainer.
//
// Trainees request training for one or more positions. The bot keeps a
// signup message in a channel listing every unmatched trainee, and a
// qualified trainer claims a trainee by picking them from that message.
// Managers can also post one-off jobs, which members accept through a
// button on the posting.
//
// Key components of the package include:
//
//   - PartyBus: The main struct, which owns the Discord session, the
//     store, the wizard registry and the HTTP servers.
//   - Store: The in-memory view of positions, users, trainings and jobs.
//     Every mutation is written through to the database under a single
//     write lock.
//   - Wizards: Multi-step, message-component driven flows (user status,
//     position status, trainer management, job posting). A wizard only
//     writes to the store in its final step.
//   - API: A backend API for bot management and monitoring.
//   - DiscordWebhookServer: Receives interactions over HTTP instead of
//     the gateway, when configured.
//
// The bot registers these commands:
//
//   - /admin: add_trainer, user_status, post_signup, trainer_management
//     and set_job_channel.
//   - /positions: add, status and global_reqs.
//   - /training: profile, config and update.
//   - /jobs: post.
package partybus
