package sqlite

const principalColumns = `id, email, name, role, plan, credits, last_credit_reset, reward_day, rewards_today, time_zone, last_login, created_at`

const qSelectPrincipalByID = `--sql 92a2188a-f872-4411-80fe-af62ea585f3d
select ` + principalColumns + `
from principals
where id = ?;
`

const qSelectPrincipalByEmail = `--sql 4c52a93f-3c2f-4087-8a1b-63f55b1c774a
select ` + principalColumns + `
from principals
where email = ?
limit 1;
`

const qUpsertPrincipal = `--sql ee2c6877-b8be-46be-a7b4-f18fd9c29fe1
insert into principals (` + principalColumns + `)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (id) do update set
  email = excluded.email,
  name = excluded.name,
  role = excluded.role,
  plan = excluded.plan,
  credits = excluded.credits,
  last_credit_reset = excluded.last_credit_reset,
  reward_day = excluded.reward_day,
  rewards_today = excluded.rewards_today,
  time_zone = excluded.time_zone,
  last_login = excluded.last_login;
`

const qListPrincipals = `--sql 7e20ecc3-b07f-425c-b023-a561e6842ae6
select ` + principalColumns + `
from principals
order by created_at asc, id asc;
`

const qDeletePrincipal = `--sql 5ed49d13-aab7-4268-bf2b-6b4043eb44af
delete from principals where id = ?;
`

const qSelectGuestUsage = `--sql d240ee14-0e87-44c7-a02d-b27ee2af2f2c
select device_id, day, count from guest_usage where device_id = ?;
`

const qUpsertGuestUsage = `--sql 651b79b4-3b5a-4c5e-9cd9-f8c3fddc6edd
insert into guest_usage (device_id, day, count)
values (?, ?, ?)
on conflict (device_id) do update set
  day = excluded.day,
  count = excluded.count;
`

const qInsertRecord = `--sql ee6d8939-41ec-4a09-8bcd-047ad799fd55
insert into enhancement_records (id, account_id, input_ref, output_ref, created_at)
values (?, ?, ?, ?, ?);
`

const qListRecords = `--sql dda02484-cf62-4b52-baf3-5fdeb3f52df1
select id, account_id, input_ref, output_ref, created_at
from enhancement_records
where account_id = ? and detached_at is null
order by created_at desc, id desc;
`

const qDetachRecords = `--sql 42677eaa-0b9a-4607-96e9-ece0d2051512
update enhancement_records
set detached_at = ?
where account_id = ? and detached_at is null;
`

const qIncrementAnalytics = `--sql 24fd63c0-7375-4a34-bfd7-46d7f78d0fd6
insert into analytics_daily (
  day, enhancements, guest_actions, credits_consumed, ad_rewards, plan_changes, credits_granted, principals_removed, signups, created_at, updated_at
)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (day) do update set
  enhancements = enhancements + excluded.enhancements,
  guest_actions = guest_actions + excluded.guest_actions,
  credits_consumed = credits_consumed + excluded.credits_consumed,
  ad_rewards = ad_rewards + excluded.ad_rewards,
  plan_changes = plan_changes + excluded.plan_changes,
  credits_granted = credits_granted + excluded.credits_granted,
  principals_removed = principals_removed + excluded.principals_removed,
  signups = signups + excluded.signups,
  updated_at = excluded.updated_at;
`

const qSelectLatestAnalytics = `--sql b489182b-a1ae-4e4a-bc5f-6317b5644671
select day, enhancements, guest_actions, credits_consumed, ad_rewards, plan_changes, credits_granted, principals_removed, signups, created_at, updated_at
from analytics_daily
order by day desc
limit 1;
`
