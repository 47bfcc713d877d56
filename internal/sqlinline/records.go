package sqlinline

const QInsertEnhancementRecord = `--sql a719d5d1-cd97-4c8e-82da-ffb354d01089
insert into enhancement_records (id, account_id, input_ref, output_ref, created_at)
values ($1::text, $2::text, $3::text, $4::text, $5::timestamptz);
`

const QListEnhancementRecords = `--sql ea5b62b7-0536-4f41-bdc6-3c7f46f35a85
select id, account_id, input_ref, output_ref, created_at, detached_at
from enhancement_records
where account_id = $1::text
  and detached_at is null
order by created_at desc, id desc;
`

const QDetachEnhancementRecords = `--sql 4dfd8070-5871-437c-a5fe-fbf7e48794d3
update enhancement_records
set detached_at = $2::timestamptz
where account_id = $1::text
  and detached_at is null;
`
