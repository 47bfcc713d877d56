package sqlinline

const principalColumns = `id, email, name, role, plan, credits, last_credit_reset, reward_day, rewards_today, time_zone, last_login, created_at`

const QSelectPrincipalByID = `--sql 28b5b2d9-66db-4b07-a65f-8e64e0fa34c5
select ` + principalColumns + `
from principals
where id = $1::text;
`

const QSelectPrincipalByEmail = `--sql 3c0ee41e-7e90-4ebf-a471-c3f00a5f12d6
select ` + principalColumns + `
from principals
where lower(email) = lower($1::text)
limit 1;
`

const QUpsertPrincipal = `--sql 8612e4d3-c42c-47f8-a2cf-f1e229db8452
insert into principals (
  id, email, name, role, plan, credits, last_credit_reset, reward_day, rewards_today, time_zone, last_login, created_at, updated_at
)
values (
  $1::text, $2::text, $3::text, $4::text, $5::text, $6::int, $7::text, $8::text, $9::int, $10::text, $11::timestamptz, $12::timestamptz, now()
)
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
  last_login = excluded.last_login,
  updated_at = now();
`

const QListPrincipals = `--sql ce3c6d35-7ca5-4307-ae8d-19fe4def87b7
select ` + principalColumns + `
from principals
order by created_at asc, id asc;
`

const QDeletePrincipal = `--sql 7f364d63-9e16-4804-8960-b07b49079d21
delete from principals
where id = $1::text;
`
